package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	envFile string
	timeout time.Duration
	logger  = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

type config struct {
	AppURL string `mapstructure:"APP_URL"`

	DBHost     string `mapstructure:"POSTGRES_HOST"`
	DBPort     string `mapstructure:"POSTGRES_PORT"`
	DBUser     string `mapstructure:"POSTGRES_USER"`
	DBPassword string `mapstructure:"POSTGRES_PASSWORD"`
	DBName     string `mapstructure:"POSTGRES_DB"`

	MQHost     string `mapstructure:"RABBITMQ_HOST"`
	MQPort     string `mapstructure:"RABBITMQ_PORT"`
	MQUser     string `mapstructure:"RABBITMQ_USER"`
	MQPassword string `mapstructure:"RABBITMQ_PASSWORD"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
	ImageDir  string `mapstructure:"IMAGE_DIR"`
}

func (c *config) amqpURI() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.MQUser, c.MQPassword, c.MQHost, c.MQPort)
}

// loadConfig reads the same .env file as the server.
func loadConfig() (*config, error) {
	v := viper.New()
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("RABBITMQ_PORT", "5672")
	v.SetDefault("IMAGE_DIR", "storage/images")

	v.SetConfigFile(envFile)
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("could not read %s: %w", envFile, err)
	}

	var c config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

var rootCmd = &cobra.Command{
	Use:           "blogctl",
	Short:         "Operate the blog backend",
	Long:          `blogctl runs maintenance tasks against the blog database and job queues.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to the .env configuration file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	userCmd.AddCommand(userCreateCmd)

	rootCmd.AddCommand(requeueCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(userCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
