package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petforge/petchain/crypto/certgen"
	"github.com/petforge/petchain/wallet"
)

func genkeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Generate a new validator key and save it to the keystore",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, err := wallet.Generate()
			if err != nil {
				return err
			}
			if err := wallet.SaveKey(rootFlags.keyPath, keystorePassword(), w.PrivKey()); err != nil {
				return err
			}
			fmt.Printf("Generated key. Public key (validator address): %s\n", w.PubKey())
			fmt.Printf("Saved to: %s\n", rootFlags.keyPath)
			return nil
		},
	}
}

func gencertsCommand() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "gencerts",
		Short: "Generate CA + node TLS certificates for mutual-TLS P2P",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(rootFlags.configFile)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if err := certgen.GenerateAll(outDir, cfg.NodeID, nil); err != nil {
				return fmt.Errorf("gencerts: %w", err)
			}
			fmt.Printf("Certificates generated in %s for node %q\n", outDir, cfg.NodeID)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "./certs", "output directory for generated certificates")
	return cmd
}
