// Command invoicectl runs maintenance tasks against the InvoiceHub database.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/internal/config"
	"github.com/diewo77/invoicehub/internal/db"
	"github.com/diewo77/invoicehub/internal/events"
	"github.com/diewo77/invoicehub/internal/flags"
	"github.com/diewo77/invoicehub/internal/logging"
	"github.com/diewo77/invoicehub/internal/policy"
	"github.com/diewo77/invoicehub/internal/services"
)

// env is built once per invocation in Before.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	conn   *gorm.DB
}

func main() {
	e := &env{}
	app := newApp(e)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "invoicectl:", err)
		os.Exit(1)
	}
}

func newApp(e *env) *cli.App {
	return &cli.App{
		Name:  "invoicectl",
		Usage: "InvoiceHub operations",
		Before: func(c *cli.Context) error {
			_ = godotenv.Load()
			if e.cfg == nil {
				e.cfg = config.Load()
			}
			if e.logger == nil {
				e.logger = logging.Must(e.cfg.App.Dev)
			}
			if e.conn == nil {
				conn, err := db.Open(e.cfg.Database, e.logger)
				if err != nil {
					return err
				}
				e.conn = conn
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "apply the database schema",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "sql", Usage: "use versioned SQL migrations (postgres only)", EnvVars: []string{"MIGRATIONS"}},
				},
				Action: func(c *cli.Context) error {
					if err := db.Migrate(e.conn, e.cfg.Database, c.Bool("sql"), e.logger); err != nil {
						return err
					}
					e.logger.Info("migrations completed")
					return nil
				},
			},
			{
				Name:  "seed",
				Usage: "insert default feature flags, optionally a demo account",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "demo", Usage: "also create a demo user"},
					&cli.StringFlag{Name: "email", Value: db.DemoEmail},
					&cli.StringFlag{Name: "password", Value: db.DemoPassword},
				},
				Action: func(c *cli.Context) error {
					if err := db.Seed(e.conn); err != nil {
						return err
					}
					if c.Bool("demo") {
						u, err := db.SeedDemo(e.conn, c.String("email"), c.String("password"))
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "demo user %s (id %d)\n", u.Email, u.ID)
					}
					return nil
				},
			},
			{
				Name:      "reconcile",
				Usage:     "recompute amount paid and status of one invoice",
				ArgsUsage: "<invoice-id>",
				Action: func(c *cli.Context) error {
					id, err := strconv.ParseUint(c.Args().First(), 10, 64)
					if err != nil || id == 0 {
						return cli.Exit("reconcile needs a numeric invoice id", 2)
					}
					payments := services.NewPaymentService(e.conn, policy.NewDefaultGate(), e.logger)
					d, err := payments.Reconcile(c.Context, uint(id))
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "invoice %d: %s -> %s paid=%s remaining=%s (%s)\n",
						id, d.From, d.To, d.AmountPaid.StringFixed(2), d.Remaining.StringFixed(2), d.Reason)
					return nil
				},
			},
			{
				Name:  "mark-overdue",
				Usage: "mark unpaid invoices past their due date as overdue",
				Action: func(c *cli.Context) error {
					invoices := services.NewInvoiceService(e.conn, policy.NewDefaultGate(), e.logger, e.cfg.App)
					n, err := invoices.MarkOverdue(c.Context)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "%d invoice(s) marked overdue\n", n)
					return nil
				},
			},
			{
				Name:  "flags",
				Usage: "feature flag administration",
				Subcommands: []*cli.Command{
					{
						Name:      "set",
						Usage:     "enable or disable a flag",
						ArgsUsage: "<key>",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "enabled", Value: true},
							&cli.IntFlag{Name: "rollout", Value: 100, Usage: "percentage of users, 0-100"},
						},
						Action: func(c *cli.Context) error {
							key := c.Args().First()
							if key == "" {
								return cli.Exit("flags set needs a flag key", 2)
							}
							if err := flags.NewService(e.conn, 0).Set(c.Context, key, c.Bool("enabled"), c.Int("rollout")); err != nil {
								return fmt.Errorf("set flag %s: %w", key, err)
							}
							fmt.Fprintf(c.App.Writer, "flag %s updated\n", key)
							return nil
						},
					},
				},
			},
			{
				Name:  "outbox",
				Usage: "publish pending outbox events once and exit",
				Action: func(c *cli.Context) error {
					var publisher events.Publisher = events.NewLoggingPublisher(e.logger)
					if len(e.cfg.Kafka.Brokers) > 0 {
						kp, err := events.NewKafkaPublisher(e.cfg.Kafka.Brokers, e.cfg.Kafka.TopicPrefix, nil)
						if err != nil {
							return err
						}
						defer kp.Close()
						publisher = kp
					}
					relay := events.NewRelay(e.conn, publisher, e.logger, e.cfg.Outbox.Interval, e.cfg.Outbox.BatchSize)
					n, err := relay.ProcessOnce(c.Context)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "%d event(s) published\n", n)
					return nil
				},
			},
		},
	}
}
