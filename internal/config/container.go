package config

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"

	"pdf-page-viewer/internal/domain"
	"pdf-page-viewer/internal/infra/supabase"
	"pdf-page-viewer/internal/loader"
	"pdf-page-viewer/internal/repository"
	"pdf-page-viewer/internal/service"
	"pdf-page-viewer/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config          domain.Config
	Logger          domain.Logger
	SupabaseClient  domain.SupabaseClient
	NodeRepository  domain.NodeRepository
	DocumentLoader  domain.DocumentLoader
	DocumentCache   *service.DocumentCache
	ExplorerService *service.ExplorerService
	ViewerService   *service.ViewerService
}

// NewContainer creates a new dependency injection container
func NewContainer() (*Container, error) {
	config := NewConfig()
	appLogger := logger.NewLogger(config.GetLogLevel())

	// Initialize Supabase client; the tree is unavailable without it but
	// plain URL viewing still works.
	supabaseClient := supabase.NewSupabaseClient(config, appLogger)
	if supabaseClient.IsConfigured() {
		if err := supabaseClient.Initialize(); err != nil {
			return nil, fmt.Errorf("initialize supabase: %w", err)
		}
	} else {
		appLogger.Warn("Supabase is not configured; document tree requests will fail")
	}

	// Document loading shares one client so session cookies persist.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	httpClient := &http.Client{Jar: jar, Timeout: config.GetFetchTimeout()}

	var resolvers []domain.LocatorResolver
	if config.GetSupabaseURL() != "" {
		resolvers = append(resolvers, loader.NewSupabaseStorageResolver(config.GetSupabaseURL(), config.GetSupabaseKey()))
	}
	documentLoader := loader.New(loader.NewPDFEngine(appLogger), appLogger, loader.Options{
		Client:       httpClient,
		Token:        config.GetDocumentSourceToken(),
		PrefetchRate: config.GetPrefetchRate(),
		Resolvers:    resolvers,
	})

	// Initialize repositories and services
	nodeRepo := repository.NewSupabaseNodeRepository(supabaseClient, appLogger)
	documentCache, err := service.NewDocumentCache(nodeRepo, config.GetDocumentCacheSize(), appLogger)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:          config,
		Logger:          appLogger,
		SupabaseClient:  supabaseClient,
		NodeRepository:  nodeRepo,
		DocumentLoader:  documentLoader,
		DocumentCache:   documentCache,
		ExplorerService: service.NewExplorerService(nodeRepo, documentCache, appLogger),
		ViewerService:   service.NewViewerService(documentLoader, config.GetViewerSettings(), appLogger),
	}, nil
}

// GetConfig returns the configuration instance
func (c *Container) GetConfig() domain.Config {
	return c.Config
}

// GetLogger returns the logger instance
func (c *Container) GetLogger() domain.Logger {
	return c.Logger
}

// Close releases every live viewer
func (c *Container) Close() error {
	return c.ViewerService.Close()
}
