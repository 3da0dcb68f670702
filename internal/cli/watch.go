package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"

	"github.com/shaiso/legisync/internal/mq"
)

// NewWatchCmd создаёт команду наблюдения за прогрессом запусков
// из других процессов через брокер.
func NewWatchCmd(g *Globals) *cobra.Command {
	var exitOnFinish bool

	cmd := &cobra.Command{
		Use:   "watch [ENTITY...]",
		Short: "Stream progress events of running jobs from the broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.LoadConfig(cmd)
			if err != nil {
				return err
			}
			url := cfg.AMQPURL
			if url == "" {
				url = mq.DefaultURL()
			}
			logger := g.Logger()
			out := g.Output()

			conn, err := mq.Dial(url, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			keys := make([]mq.RoutingKey, 0, len(args))
			for _, e := range args {
				keys = append(keys, mq.BindingKey(e))
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			w := &watcher{out: out, remaining: len(args), exitOnFinish: exitOnFinish, done: cancel}
			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				Declare: func(ch *amqp.Channel) (mq.Queue, error) {
					return mq.DeclareWatchQueue(ch, keys...)
				},
				Handler: w.handle,
			})

			out.Success("watching " + string(mq.ExchangeProgress) + ", press Ctrl+C to stop")
			err = consumer.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().String("amqp-url", "", "RabbitMQ URL")
	cmd.Flags().BoolVar(&exitOnFinish, "exit-on-finish", false, "Exit after a run.finished event for every watched entity")
	return cmd
}

// watcher печатает события.
type watcher struct {
	out          *Output
	exitOnFinish bool
	remaining    int
	done         func()
}

func (w *watcher) handle(_ context.Context, d *mq.Delivery) error {
	switch d.Message.Type {
	case mq.MessageTypeProgress:
		ev, err := mq.ParsePayload[mq.ProgressPayload](&d.Message)
		if err != nil {
			return err
		}
		if w.out.JSONMode() {
			w.out.JSON(ev)
			return nil
		}
		w.out.Line("%s  %-10s  %-12s  %5.1f%%  %s",
			ev.At.Format(time.TimeOnly), ev.Entity, ev.Stage, ev.Percent, ev.Message)

	case mq.MessageTypeRunFinished:
		res, err := mq.ParsePayload[mq.RunFinishedPayload](&d.Message)
		if err != nil {
			return err
		}
		if w.out.JSONMode() {
			w.out.JSON(res)
		} else {
			line := fmt.Sprintf("%s finished: %s, %d written, %d failed in %s",
				res.Entity, res.Status, res.Succeeded, res.Failed, res.Duration.Round(time.Millisecond))
			if res.Error != "" {
				line += " (" + res.Error + ")"
			}
			w.out.Line("%s", line)
		}
		w.finished()

	default:
		return fmt.Errorf("unexpected message type %q", d.Message.Type)
	}
	return nil
}

// finished считает завершённые run; без фильтра сущностей выход по первому.
func (w *watcher) finished() {
	if !w.exitOnFinish {
		return
	}
	w.remaining--
	if w.remaining <= 0 {
		w.done()
	}
}
