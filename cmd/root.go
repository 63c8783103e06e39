// Package cmd wires the venti back-office assistant into a CLI.
package cmd

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Juliodvp29/venti-multi-tenant/internal/config"
	"github.com/Juliodvp29/venti-multi-tenant/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "venti",
	Short: "Venti - asistente conversacional para tu back office de e-commerce",
	Long: `Venti es un asistente conversacional para administradores de tiendas
multi-tenant. Consulta ventas, órdenes, productos, inventario y promociones
en lenguaje natural, respaldado por herramientas sobre tus datos reales.

Ejecutar venti sin argumentos inicia el modo chat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from configuration.
func newLogger(cfg *config.Config) log.Logger {
	return log.New(log.Config{
		Level: parseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
