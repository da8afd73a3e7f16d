package walletloader

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
)

const defaultWalletFilePath = "data/wallets.txt"

// WalletFileLoader implements the port.WalletProvider interface by loading wallets from a file.
// One address per line, optionally followed by a comma-separated chain list:
//
//	0x742d35Cc6634C0532925a3b844Bc454e4438f44e eth,polygon
type WalletFileLoader struct {
	filePath string
	logger   port.Logger
}

// NewWalletFileLoader creates a new WalletFileLoader. An empty path uses data/wallets.txt.
func NewWalletFileLoader(path string, log port.Logger) *WalletFileLoader {
	if path == "" {
		path = defaultWalletFilePath
	}
	return &WalletFileLoader{filePath: path, logger: log}
}

// GetWallets reads wallet addresses from the configured file path.
// Invalid and duplicate lines are skipped.
func (l *WalletFileLoader) GetWallets(_ context.Context) ([]entity.Wallet, error) {
	file, err := os.Open(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet file %s: %w", l.filePath, err)
	}
	defer file.Close()

	var wallets []entity.Wallet
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		address := fields[0]
		if err := entity.ValidateAddress(address); err != nil {
			l.logger.Warn("Skipping invalid wallet address format", "file", l.filePath, "line_number", lineNum, "address", address)
			continue
		}
		if containsAddress(wallets, address) {
			l.logger.Warn("Skipping duplicate wallet address", "file", l.filePath, "line_number", lineNum, "address", address)
			continue
		}
		w := entity.Wallet{Address: address}
		if len(fields) > 1 {
			for _, c := range strings.Split(fields[1], ",") {
				if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
					w.Chains = append(w.Chains, c)
				}
			}
		}
		wallets = append(wallets, w)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning wallet file %s: %w", l.filePath, err)
	}

	l.logger.Info("Wallets loaded successfully from file", "count", len(wallets), "path", l.filePath)
	return wallets, nil
}

func containsAddress(wallets []entity.Wallet, address string) bool {
	for _, w := range wallets {
		if entity.SameAddress(w.Address, address) {
			return true
		}
	}
	return false
}
