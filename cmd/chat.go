package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/Juliodvp29/venti-multi-tenant/internal/assistant"
	"github.com/Juliodvp29/venti-multi-tenant/internal/config"
	"github.com/Juliodvp29/venti-multi-tenant/internal/store"
)

var chatTenantSlug string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Inicia una conversación con el asistente",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatTenantSlug, "tenant", "t", "", "slug de la tienda (requerido)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.RequireAPIKey(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: VENTI_GEMINI_API_KEY no está configurada")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Ejecuta:")
		fmt.Fprintln(os.Stderr, "  export VENTI_GEMINI_API_KEY=tu-api-key")
		return err
	}
	if chatTenantSlug == "" {
		return errors.New("la bandera --tenant es requerida")
	}

	logger := newLogger(cfg)

	pool, err := pgxpool.New(ctx, cfg.PostgresURL())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	st, err := store.New(pool, logger)
	if err != nil {
		return err
	}

	tenant, err := st.TenantBySlug(ctx, chatTenantSlug)
	if err != nil {
		return fmt.Errorf("resolving tenant: %w", err)
	}

	session, err := buildSession(ctx, cfg, st, tenant, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Venti - %s\n", tenant.BusinessName)
	fmt.Println("Escribe /clear para reiniciar la conversación, /quit para salir.")
	fmt.Println()

	for _, msg := range session.Messages() {
		printMessage(msg)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println("\n¡Hasta luego!")
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch input {
		case "/quit", "/exit":
			fmt.Println("¡Hasta luego!")
			return nil
		case "/clear":
			session.Clear()
			fmt.Println("Conversación reiniciada.")
			printMessage(session.Messages()[0])
			continue
		}

		if err := session.SendMessage(ctx, input); err != nil {
			if errors.Is(err, assistant.ErrNoTenant) {
				return err
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		msgs := session.Messages()
		printMessage(msgs[len(msgs)-1])
	}
}

// buildSession assembles the full assistant stack for one tenant.
func buildSession(ctx context.Context, cfg *config.Config, st *store.Store, tenant *store.Tenant, logger *slog.Logger) (*assistant.Session, error) {
	registry, err := assistant.NewRegistry(st)
	if err != nil {
		return nil, fmt.Errorf("building tool registry: %w", err)
	}

	model, err := assistant.NewGeminiClient(ctx, assistant.GeminiClientConfig{
		APIKey:          cfg.GeminiAPIKey,
		Model:           cfg.GeminiModel,
		Declarations:    registry.Declarations(),
		MaxOutputTokens: int32(cfg.MaxOutputTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	orch, err := assistant.NewOrchestrator(assistant.OrchestratorConfig{
		Model:         model,
		Dispatcher:    assistant.NewDispatcher(registry, logger),
		Logger:        logger,
		MaxToolRounds: cfg.MaxToolRounds,
	})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	storage, err := assistant.NewFileStorage(cfg.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot storage: %w", err)
	}

	tenantID := tenant.ID
	return assistant.NewSession(assistant.SessionConfig{
		Orchestrator:  orch,
		Snapshots:     assistant.NewSnapshotStore(storage, cfg.SnapshotTTL, logger),
		ResolveTenant: func() (uuid.UUID, bool) { return tenantID, tenantID != uuid.Nil },
		Logger:        logger,
	})
}

func printMessage(msg assistant.Message) {
	prefix := "Tú"
	if msg.Role == assistant.RoleModel {
		prefix = "Venti"
	}
	fmt.Printf("%s: %s\n\n", prefix, msg.Content)
}
