package health

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/librarrarian/dashboard/internal/config"
	"github.com/librarrarian/dashboard/internal/log"
)

// PerformStartupChecks validates configuration invariants that must hold
// before the HTTP surface opens. Failure here is fatal (spec.md §7).
func PerformStartupChecks(_ context.Context, cfg config.Config) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if cfg.ListenAddr != "" {
		_, port, err := net.SplitHostPort(cfg.ListenAddr)
		if err != nil {
			return fmt.Errorf("invalid listen address %q: %w", cfg.ListenAddr, err)
		}
		if portNum, err := strconv.Atoi(port); err != nil || portNum < 0 || portNum > 65535 {
			return fmt.Errorf("invalid listen port %q in %q", port, cfg.ListenAddr)
		}
	}

	if cfg.APIKey == "" {
		return fmt.Errorf("API_KEY must be set")
	}

	for _, p := range cfg.MediaPaths {
		if err := forbiddenRoot(p); err != nil {
			return err
		}
	}

	logger.Info().Msg("startup checks passed")
	return nil
}

var reservedRoots = []string{"/", "/etc", "/root", "/sys", "/proc", "/dev", "/bin", "/sbin", "/usr", "/var", "/tmp"}

func forbiddenRoot(path string) error {
	for _, r := range reservedRoots {
		if path == r {
			return fmt.Errorf("MEDIA_PATHS entry %q is a reserved system directory", path)
		}
	}
	return nil
}
