package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	vault "github.com/misterlabs/agentvault/pkg"
)

func main() {
	var config vault.Config

	LoadConfig(&config)

	// define root command
	rootCmd := &cobra.Command{
		Use: "agentvault",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
			os.Exit(0)
		},
	}

	// Add flags for each configuration option
	rootCmd.PersistentFlags().StringVar(&config.AgentVault.Network, "network", config.AgentVault.Network, "Network (mainnet, preprod, preview)")
	rootCmd.PersistentFlags().IntVar(&config.AgentVault.ConfirmationsNeeded, "confirmations-needed", config.AgentVault.ConfirmationsNeeded, "Confirmations needed")
	rootCmd.PersistentFlags().StringVar(&config.WebAPI.AdminBind, "admin-bind", config.WebAPI.AdminBind, "Admin API bind")
	rootCmd.PersistentFlags().StringVar(&config.WebAPI.AdminPort, "admin-port", config.WebAPI.AdminPort, "Admin API port")
	rootCmd.PersistentFlags().StringVar(&config.WebAPI.PubBind, "pub-bind", config.WebAPI.PubBind, "Public API bind")
	rootCmd.PersistentFlags().StringVar(&config.WebAPI.PubPort, "pub-port", config.WebAPI.PubPort, "Public API port")
	rootCmd.PersistentFlags().StringVar(&config.Store.DBFile, "store-db-file", config.Store.DBFile, "Store DB file")
	rootCmd.PersistentFlags().StringVar(&config.Signer.KeyFile, "signer-key-file", config.Signer.KeyFile, "Local signing key file (hex seed)")
	// Bind flags to config fields
	viper.BindPFlags(rootCmd.PersistentFlags())

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Start the Agent Vault server",
		Run: func(cmd *cobra.Command, args []string) {
			Server(config)
		},
	}

	configCmd := &cobra.Command{
		Use:   "showconf",
		Short: "Print the config state and exit",
		Run: func(cmd *cobra.Command, args []string) {
			o, _ := json.MarshalIndent(config, ">", " ")
			fmt.Println(string(o))
			os.Exit(0)
		},
	}

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(registerCmd(&config))
	rootCmd.AddCommand(deployCmd(&config))
	rootCmd.AddCommand(withdrawCmd(&config))
	rootCmd.AddCommand(statusCmd(&config))
	rootCmd.AddCommand(contractsCmd(&config))

	// Execute the Cobra command
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
	}
}

func LoadConfig(config *vault.Config) {
	// struct-tag defaults first; the config file overlays them
	*config = vault.LoadConfig("")

	configFileName, set := os.LookupEnv("VAULT_ENV")
	if set {
		viper.SetConfigName(configFileName)
	} else {
		viper.SetConfigName("config")
	}

	// Set config file name and search paths
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/agentvault/")
	viper.AddConfigPath("$HOME/.agentvault")

	if err := viper.ReadInConfig(); err != nil {
		// defaults still apply when no file is present
		fmt.Println("no config file found, using defaults")
		return
	}

	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("failed to unmarshal config: %s", err))
	}
}
