package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/udisondev/updstatus/internal/model"
)

// withBackend loads config, opens the backend for the duration of fn and closes it.
func withBackend(ctx context.Context, cmd *cli.Command, fn func(b *backend) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	b, err := openBackend(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer b.close()
	return fn(b)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withBackend(ctx, cmd, func(*backend) error {
				fmt.Fprintln(cmd.Root().Writer, "migrations applied")
				return nil
			})
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Print the recorded update status",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withBackend(ctx, cmd, func(b *backend) error {
				status, err := b.status.GetLast(ctx, nil)
				if err != nil {
					return err
				}
				w := cmd.Root().Writer
				if status == nil {
					fmt.Fprintln(w, "no update status recorded")
					return nil
				}
				t := status.Transaction
				fmt.Fprintf(w, "transaction %d (height %d, subtype %d) updated=%t\n",
					t.ID, t.Height, t.Subtype, status.Updated)
				return nil
			})
		},
	}
}

func recordCommand() *cli.Command {
	return &cli.Command{
		Name:  "record",
		Usage: "Replace the update status with a ledger transaction",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "tx", Usage: "ledger transaction ID", Required: true},
			&cli.BoolFlag{Name: "updated", Usage: "mark the update as installed"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Int64("tx")
			return withBackend(ctx, cmd, func(b *backend) error {
				t, err := b.ledger.Get(ctx, nil, id)
				if err != nil {
					return err
				}
				if t == nil {
					return fmt.Errorf("transaction %d not found in ledger", id)
				}
				if !t.IsUpdate() {
					slog.Warn("recording a non-update transaction", "transactionID", id, "type", t.Type)
				}
				if err := b.status.ClearAndSave(ctx, nil, model.NewUpdateStatus(t, cmd.Bool("updated"))); err != nil {
					return err
				}
				fmt.Fprintf(cmd.Root().Writer, "recorded transaction %d\n", id)
				return nil
			})
		},
	}
}

func markUpdatedCommand() *cli.Command {
	return &cli.Command{
		Name:  "mark-updated",
		Usage: "Flag the recorded update as installed",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "tx", Usage: "ledger transaction ID of the recorded status", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Int64("tx")
			return withBackend(ctx, cmd, func(b *backend) error {
				return markUpdated(ctx, b, id)
			})
		},
	}
}

// markUpdated checks and flips the flag inside one transaction.
func markUpdated(ctx context.Context, b *backend, id int64) error {
	tx, err := b.provider.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			slog.Error("rollback failed", "transactionID", id, "error", err)
		}
	}()

	status, err := b.status.GetLast(ctx, tx)
	if err != nil {
		return err
	}
	if status == nil || status.TransactionID() != id {
		return fmt.Errorf("no update status recorded for transaction %d", id)
	}
	status.Updated = true
	if err := b.status.Update(ctx, tx, status); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete the recorded update status",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withBackend(ctx, cmd, func(b *backend) error {
				removed, err := b.status.Clear(ctx, nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.Root().Writer, "removed %d rows\n", removed)
				return nil
			})
		},
	}
}

func ledgerAddCommand() *cli.Command {
	return &cli.Command{
		Name:  "ledger-add",
		Usage: "Store an update transaction in the local ledger table",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "id", Required: true},
			&cli.Int16Flag{Name: "subtype", Usage: "0 critical, 1 important, 2 minor", Value: model.SubtypeMinorUpdate},
			&cli.Int32Flag{Name: "height"},
			&cli.Int32Flag{Name: "timestamp"},
			&cli.StringFlag{Name: "attachment", Usage: "hex-encoded attachment"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			attachment, err := hex.DecodeString(cmd.String("attachment"))
			if err != nil {
				return fmt.Errorf("decoding attachment: %w", err)
			}
			t := &model.Transaction{
				ID:         cmd.Int64("id"),
				Type:       model.TypeUpdate,
				Subtype:    cmd.Int16("subtype"),
				Height:     cmd.Int32("height"),
				Timestamp:  cmd.Int32("timestamp"),
				Attachment: attachment,
			}
			return withBackend(ctx, cmd, func(b *backend) error {
				if err := b.ledger.Save(ctx, nil, t); err != nil {
					return err
				}
				fmt.Fprintf(cmd.Root().Writer, "stored transaction %d hash=%x\n", t.ID, t.FullHash)
				return nil
			})
		},
	}
}
