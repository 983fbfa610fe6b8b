package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sandevgo/tuskchat/internal/authz"
	"github.com/sandevgo/tuskchat/internal/config"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/internal/providers/llm"
	"github.com/sandevgo/tuskchat/internal/providers/rag"
	"github.com/sandevgo/tuskchat/internal/service/chat"
	"github.com/sandevgo/tuskchat/internal/service/command"
	"github.com/sandevgo/tuskchat/internal/service/knowledge"
	"github.com/sandevgo/tuskchat/internal/service/memory"
	"github.com/sandevgo/tuskchat/internal/storage/sqlite"
	"github.com/sandevgo/tuskchat/internal/storage/vector"
	"github.com/sandevgo/tuskchat/internal/transport/httpapi"
	"github.com/sandevgo/tuskchat/internal/transport/telegram"
	"github.com/sandevgo/tuskchat/pkg/log"
	"github.com/sandevgo/tuskchat/pkg/srv"
)

// App holds the wired core shared by every command.
type App struct {
	Config    *config.AppConfig
	Authz     *config.AuthzConfig
	Chat      *chat.Orchestrator
	Items     *memory.Items
	Knowledge *knowledge.Pipeline
	Router    *command.Router

	// background workers and cleanups, in start order
	services []srv.Service
}

func (a *App) LocalSubject() core.Subject {
	return core.Subject{ID: a.Authz.LocalUser, Roles: a.Authz.LocalRoles}
}

func NewApp(ctx context.Context) (app *App, err error) {
	if err := config.LoadEnvFile(ctx, config.GetRuntimePath()); err != nil {
		return nil, fmt.Errorf("failed to init env: %w", err)
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	providerCfg := config.NewProviderConfig(ctx)
	ragCfg := config.NewRAGConfig(ctx)
	knowledgeCfg := config.NewKnowledgeConfig(ctx)
	authzCfg := config.NewAuthzConfig(ctx)

	app = &App{Config: appCfg, Authz: authzCfg}
	defer func() {
		if err != nil {
			app.Close(ctx)
			app = nil
		}
	}()

	if err := os.MkdirAll(appCfg.GetRuntimePath(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	// 2. Storage
	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.services = append(app.services, srv.NewCleanup(db.Close))

	messages := sqlite.NewMessagesRepo(db)

	// 3. Provider gateway
	gateway, err := llm.NewGatewayFromConfig(ctx, appCfg.DefaultProvider, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider gateway: %w", err)
	}

	// 4. Authorization
	authorizer, err := authz.New(ctx, authzCfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load authorization policy: %w", err)
	}

	// 5. Semantic memory
	store, err := initMemory(ctx, appCfg, ragCfg, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory store: %w", err)
	}
	if store.Enabled() {
		app.services = append(app.services,
			memory.NewEmbedderWorker(messages, store, ragCfg.EmbedInterval),
			memory.NewExtractor(messages, gateway, store, ragCfg.ExtractInterval).
				WithModel(ragCfg.ExtractProvider, ragCfg.ExtractModel),
		)
	}

	// 6. Knowledge pipeline
	app.Knowledge = knowledge.NewPipeline(
		sqlite.NewMaterialsRepo(db),
		sqlite.NewKnowledgeRepo(db),
		gateway,
		authorizer,
		knowledge.WithModel(knowledgeCfg.Provider, knowledgeCfg.Model),
		knowledge.WithMaxTopics(knowledgeCfg.MaxTopics),
		knowledge.WithFetcher(knowledge.NewFetcher(knowledgeCfg.FetchTimeout, nil)),
	)
	app.services = append(app.services, knowledge.NewWorker(app.Knowledge, knowledgeCfg.WorkerInterval))
	if knowledgeCfg.InboxEnabled {
		owner := core.Subject{ID: knowledgeCfg.InboxOwner}
		app.services = append(app.services,
			knowledge.NewInboxWatcher(appCfg.GetInboxPath(), knowledgeCfg.InboxPatterns, owner, app.Knowledge))
	}

	// 7. Conversations
	app.Chat = chat.NewOrchestrator(appCfg, chat.Deps{
		Conversations: sqlite.NewConversationsRepo(db),
		Messages:      messages,
		Gateway:       gateway,
		Memory:        store,
		Knowledge:     app.Knowledge,
		Prompts:       memory.NewSysPrompt(appCfg),
		Authz:         authorizer,
	})
	app.Items = memory.NewItems(sqlite.NewMemoriesRepo(db), store, authorizer)
	app.Router = command.New(command.NewCommands(app.Chat, gateway, app.Items, app.Knowledge))

	log.FromCtx(ctx).Info().
		Strs("providers", gateway.Providers()).
		Str("default_provider", gateway.DefaultProvider()).
		Bool("memory", store.Enabled()).
		Msg("core initialized")
	return app, nil
}

func initMemory(ctx context.Context, appCfg *config.AppConfig, ragCfg *config.RAGConfig, providerCfg *config.ProviderConfig) (*memory.Store, error) {
	embedder, err := rag.NewEmbedderFromConfig(ctx, ragCfg, providerCfg)
	if err != nil {
		return nil, err
	}
	if embedder == nil {
		log.FromCtx(ctx).Info().Msg("no embedding provider configured, memory store disabled")
		return memory.NewDisabledStore(), nil
	}

	var path string
	if ragCfg.Persist {
		path = appCfg.GetVectorPath()
	}
	index, err := vector.NewIndex(path)
	if err != nil {
		return nil, err
	}

	return memory.NewStore(embedder, index,
		memory.WithTopK(ragCfg.TopK),
		memory.WithMinSimilarity(ragCfg.MinSimilarity),
	), nil
}

// Services returns the background workers followed by the enabled network
// transports.
func (a *App) Services(ctx context.Context) ([]srv.Service, error) {
	services := append([]srv.Service(nil), a.services...)

	if a.Config.EnableHTTP {
		services = append(services, httpapi.NewServer(a.Config.HTTPAddr, httpapi.NewAPI(a.Chat, a.Items, a.Knowledge)))
	}

	if a.Config.EnableTelegram {
		tgCfg := config.NewTelegramConfig(ctx)
		bot, err := telegram.NewBot(ctx, tgCfg, a.Chat, a.Router, a.Authz.LocalRoles)
		if err != nil {
			return nil, err
		}
		services = append(services, bot)
	}

	return services, nil
}

// Close releases what NewApp opened, for commands that never start the
// background services.
func (a *App) Close(ctx context.Context) {
	for i := len(a.services) - 1; i >= 0; i-- {
		if err := a.services[i].Shutdown(ctx); err != nil {
			log.FromCtx(ctx).Error().Err(err).Msgf("%T failed to shutdown", a.services[i])
		}
	}
}
