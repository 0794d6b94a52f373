package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fluxionlabs/fluxion/agent"
	"github.com/fluxionlabs/fluxion/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cfg struct {
	config.Config
}

type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("namespace", "fluxion", "namespace used in storage")
	cmd.Flags().Int("http-port", 8080, "http port for rest endpoints")
	cmd.Flags().String("storage-impl", "memory", "implementation of underline storage")
	cmd.Flags().String("allocation-strategy", "round_robin", "resource allocation strategy")
	cmd.Flags().Uint64("default-gas", 100000, "default gas budget per session")
	cmd.Flags().Int("engine-workers", 4, "session executor workers")
	cmd.Flags().Int("executor-capacity", 512, "session executor queue capacity")
	cmd.Flags().Int("sweep-interval", 5, "await deadline sweep interval in seconds")
	cmd.Flags().String("anthropic-api-key", "", "anthropic api key, empty disables the provider")
	cmd.Flags().String("anthropic-model", "", "anthropic model override")
	cmd.Flags().Int("llm-max-attempts", 2, "llm provider fallback attempts")
	cmd.Flags().String("log-level", "info", "minimum log level")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	viper.SetConfigFile(configFile)

	if err = viper.ReadInConfig(); err != nil {
		// it's ok if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.AllocationStrategy = config.AllocationStrategyType(viper.GetString("allocation-strategy"))
	c.cfg.DefaultGas = viper.GetUint64("default-gas")
	c.cfg.EngineWorkers = viper.GetInt("engine-workers")
	c.cfg.ExecutorCapacity = viper.GetInt("executor-capacity")
	c.cfg.SweepInterval = viper.GetInt("sweep-interval")
	c.cfg.AnthropicAPIKey = viper.GetString("anthropic-api-key")
	c.cfg.AnthropicModel = viper.GetString("anthropic-model")
	c.cfg.LLMMaxAttempts = viper.GetInt("llm-max-attempts")
	c.cfg.LogLevel = viper.GetString("log-level")
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	runtime, err := agent.New(c.cfg.Config)
	if err != nil {
		panic(err)
	}
	if err := runtime.Start(); err != nil {
		panic(err)
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return runtime.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "fluxion",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
