// Command petchaind runs a petchain validator node.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootFlags = struct {
	configFile string
	keyPath    string
}{}

func main() {
	rootCmd := &cobra.Command{
		Use:          "petchaind",
		Short:        "petchain node: pet battles, asset custody, and a trading market on a PoA chain",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&rootFlags.configFile, "config", "petchain.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&rootFlags.keyPath, "key", "validator.key", "path to keystore file")

	rootCmd.AddCommand(runCommand())
	rootCmd.AddCommand(genkeyCommand())
	rootCmd.AddCommand(gencertsCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}

// keystorePassword reads the keystore password from the environment (not CLI
// flags — they leak via ps).
func keystorePassword() string {
	password := os.Getenv("PETCHAIN_PASSWORD")
	if password == "" {
		log.Println("WARNING: PETCHAIN_PASSWORD not set — keystore will use an empty password")
	}
	return password
}
