package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/byteai/voiceline/internal/config"
	"github.com/byteai/voiceline/internal/log"
	"github.com/byteai/voiceline/internal/store"
	"github.com/byteai/voiceline/pkg/knowledge"
)

func newKBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage the knowledge base",
	}
	cmd.AddCommand(newKBLoadCmd())
	cmd.AddCommand(newKBListCmd())
	return cmd
}

func newKBLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>",
		Short: "Load documents from a JSON file into the knowledge index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			log.Init(cfg.LogLevel)

			db, err := store.Open(cfg.Knowledge.DBPath, log.L())
			if err != nil {
				return err
			}
			defer db.Close()

			kb := knowledge.NewBase(db, log.L())
			n, err := kb.LoadFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("loaded %d documents into %s\n", n, cfg.Knowledge.DBPath)
			return nil
		},
	}
}

func newKBListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List indexed documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			log.Init(cfg.LogLevel)

			db, err := store.Open(cfg.Knowledge.DBPath, log.L())
			if err != nil {
				return err
			}
			defer db.Close()

			kb := knowledge.NewBase(db, log.L())
			docs, err := kb.All(cmd.Context())
			if err != nil {
				return err
			}
			for _, d := range docs {
				fmt.Printf("%-24s [%s] %s\n", d.ID, d.Category, d.Question)
			}
			fmt.Printf("%d documents\n", len(docs))
			return nil
		},
	}
}
