package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamscout/streamscout/internal/profile"
	"github.com/streamscout/streamscout/server/writebuffer"
	"github.com/streamscout/streamscout/store"
	"github.com/streamscout/streamscout/store/db"
)

const (
	greetingBanner = `streamscout - discover your next favorite streamer`
)

var (
	version = "dev"

	rootCmd = &cobra.Command{
		Use:   "streamscout",
		Short: "Cached recommendation core for streamer discovery",
		Run: func(_ *cobra.Command, _ []string) {
			instanceProfile := &profile.Profile{
				Mode:    viper.GetString("mode"),
				Data:    viper.GetString("data"),
				Driver:  viper.GetString("driver"),
				DSN:     viper.GetString("dsn"),
				Version: version,
			}
			instanceProfile.FromEnv()
			if err := instanceProfile.Validate(); err != nil {
				slog.Error("invalid configuration", "error", err)
				return
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			dbDriver, err := db.NewDBDriver(instanceProfile)
			if err != nil {
				slog.Error("failed to create db driver", "error", err)
				return
			}

			initialized, err := dbDriver.IsInitialized(ctx)
			if err != nil {
				slog.Error("failed to check database state", "error", err)
				return
			}
			if !initialized {
				slog.Warn("database schema not found, apply the schema before serving traffic")
			}

			storeInstance := store.New(dbDriver, instanceProfile)
			buffer := writebuffer.New(storeInstance, writebuffer.WithInterval(instanceProfile.FlushInterval))
			buffer.Start()

			printGreetings(instanceProfile)

			// Shut down on SIGINT/SIGTERM: stop buffering, push out the
			// last batch, then release the store and driver.
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
			go func() {
				sig := <-c
				slog.Info("received signal, shutting down", "signal", sig.String())
				buffer.Stop()

				flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer flushCancel()
				if err := buffer.Flush(flushCtx); err != nil {
					slog.Error("final flush failed, buffered writes lost", "error", err)
				}

				if err := storeInstance.Close(); err != nil {
					slog.Error("failed to close store", "error", err)
				}
				cancel()
			}()

			<-ctx.Done()
		},
	}
)

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("driver", "postgres")

	rootCmd.PersistentFlags().String("mode", "demo", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "postgres", "database driver")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")

	if err := viper.BindPFlag("mode", rootCmd.PersistentFlags().Lookup("mode")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("data", rootCmd.PersistentFlags().Lookup("data")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("driver", rootCmd.PersistentFlags().Lookup("driver")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("dsn", rootCmd.PersistentFlags().Lookup("dsn")); err != nil {
		panic(err)
	}

	viper.SetEnvPrefix("streamscout")
	viper.AutomaticEnv()
}

func printGreetings(p *profile.Profile) {
	fmt.Println(greetingBanner)
	slog.Info("server profile",
		"version", p.Version,
		"mode", p.Mode,
		"driver", p.Driver,
		"data", p.Data,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("failed to run command", "error", err)
		os.Exit(1)
	}
}
