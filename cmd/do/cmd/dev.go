package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clickfit/clickfit/internal/config"
)

func DevCmd() *cobra.Command {
	var (
		port    string
		storage string
	)

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Prepare the database and upload dir, then run the server under air",
		RunE: func(cmd *cobra.Command, args []string) error {
			for key, value := range devOverrides(port, storage) {
				err := os.Setenv(key, value)
				if err != nil {
					return err
				}
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			err = prepareDev(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return runAir(os.Environ())
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (defaults to PORT)")
	cmd.Flags().StringVar(&storage, "storage", "", "storage driver override: local or s3")

	return cmd
}

// devOverrides is the environment the server runs with under air
func devOverrides(port, storage string) map[string]string {
	env := map[string]string{"APP_ENV": "development"}
	if port != "" {
		env["PORT"] = port
	}
	if storage != "" {
		env["STORAGE_DRIVER"] = storage
	}
	return env
}

// prepareDev migrates the database and creates the local upload root so the
// first hot-reload build starts clean
func prepareDev(ctx context.Context, cfg *config.Config) error {
	database, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if cfg.Storage.Driver == config.StorageDriverLocal {
		err = os.MkdirAll(cfg.Upload.Dir, 0755)
		if err != nil {
			return fmt.Errorf("failed to create upload directory: %w", err)
		}
	}

	slog.Info("dev environment ready",
		"db_driver", cfg.DBDriver,
		"storage", cfg.Storage.Driver,
		"port", cfg.Port,
	)
	return nil
}

func runAir(env []string) error {
	airPath, err := exec.LookPath("air")
	if err != nil {
		fmt.Println("Missing binary: air")
		fmt.Println("Install with:")
		fmt.Println("  go install github.com/air-verse/air@latest")
		return fmt.Errorf("air not found")
	}

	airArgs := []string{
		"air",
		"-c", "/dev/null",
		"-root", ".",
		"-build.cmd", "go build -o ./tmp/main ./cmd/server",
		"-build.bin", "./tmp/main",
		"-build.delay", "100",
		"-build.exclude_dir", "bin,tmp,data,upload_images,_examples",
		"-build.exclude_regex", "_test.go$",
		"-build.include_ext", "go,sql",
		"-build.kill_delay", "500ms",
		"-build.send_interrupt", "true",
	}

	return syscall.Exec(airPath, airArgs, env)
}
