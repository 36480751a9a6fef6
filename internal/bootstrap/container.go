package bootstrap

import (
	"time"

	"finquery-client/internal/api"
	"finquery-client/internal/config"
	"finquery-client/internal/constant"
	"finquery-client/internal/pkg/logger"
	"finquery-client/internal/selection"
	"finquery-client/internal/session"
	"finquery-client/internal/transcript"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type Container struct {
	Config     *config.Config
	Logger     logger.ILogger
	PubSub     *gochannel.GoChannel
	Api        *api.Client
	Selection  *selection.Set
	Transcript *transcript.Store
	Session    *session.Controller
}

func NewContainer(cfg *config.Config) *Container {
	// File-only logger: stdout belongs to the interactive transcript.
	sysLogger := logger.NewIsolatedLogger(cfg.App.LogFilePath)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermillLogger,
	)

	// 3. Credentials (optional: deployments without auth skip login)
	var creds api.CredentialProvider
	if cfg.Auth.Email != "" {
		creds = api.NewLoginCredentials(cfg.Api.BaseURL, cfg.Auth.Email, cfg.Auth.Password, sysLogger)
	}

	apiClient := api.NewClient(
		cfg.Api.BaseURL,
		time.Duration(cfg.Api.TimeoutSeconds)*time.Second,
		creds,
		pubSub,
		sysLogger,
	)

	selectionSet := selection.NewSet(constant.MaxSelectedDocuments)
	transcriptStore := transcript.NewStore(pubSub)
	sessionController := session.NewController(
		apiClient,
		transcriptStore,
		selectionSet,
		sysLogger,
		cfg.Query.Streaming,
		cfg.Query.ResultLimit,
	)

	return &Container{
		Config:     cfg,
		Logger:     sysLogger,
		PubSub:     pubSub,
		Api:        apiClient,
		Selection:  selectionSet,
		Transcript: transcriptStore,
		Session:    sessionController,
	}
}
