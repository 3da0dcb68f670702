// legisync — выгрузка данных законодательного API в хранилище документов.
//
// Использование:
//
//	legisync [--config FILE] [--json] <command> [flags]
//
// Команды:
//
//	run       Выгрузить сущности
//	validate  Проверить конфигурацию
//	entities  Список поддерживаемых сущностей
//	schedule  Выполнение по cron-расписанию
//	watch     Прогресс запусков из брокера
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/legisync/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	g := &cli.Globals{}

	rootCmd := &cobra.Command{
		Use:           "legisync",
		Short:         "legisync — legislative data ETL",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	g.Bind(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		cli.NewRunCmd(g),
		cli.NewValidateCmd(g),
		cli.NewEntitiesCmd(g),
		cli.NewScheduleCmd(g),
		cli.NewWatchCmd(g),
	)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}
