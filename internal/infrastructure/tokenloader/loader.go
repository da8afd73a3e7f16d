package tokenloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/pkg/utils"
)

const defaultTokenDirectoryPath = "data/tokens"

// TokenFileLoader implements the port.TokenProvider interface.
// Token lists live in <dir>/<network identifier>.json.
type TokenFileLoader struct {
	tokenDirPath string
	logger       port.Logger
}

// NewTokenLoader creates a new TokenFileLoader. An empty dir uses data/tokens.
func NewTokenLoader(dir string, log port.Logger) *TokenFileLoader {
	if dir == "" {
		dir = defaultTokenDirectoryPath
	}
	return &TokenFileLoader{tokenDirPath: dir, logger: log}
}

// GetTokensByNetwork reads the token file of every given network.
// Возвращает map[identifier][]TokenInfo. Токены с чужим chainId пропускаются.
// A missing directory yields an empty map.
func (l *TokenFileLoader) GetTokensByNetwork(networks []entity.NetworkDefinition) (map[string][]entity.TokenInfo, error) {
	tokensByNetwork := make(map[string][]entity.TokenInfo)

	if _, err := os.Stat(l.tokenDirPath); err != nil {
		if os.IsNotExist(err) {
			l.logger.Info("Token directory not found, no tokens will be loaded", "path", l.tokenDirPath)
			return tokensByNetwork, nil
		}
		return nil, fmt.Errorf("failed to read token directory %s: %w", l.tokenDirPath, err)
	}

	for _, netDef := range networks {
		filePath := filepath.Join(l.tokenDirPath, strings.ToLower(netDef.Identifier)+".json")
		tokens, err := utils.LoadTokensFromJSON(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			l.logger.Warn("Failed to load token file, skipping file.", "path", filePath, "error", err)
			continue
		}

		valid := make([]entity.TokenInfo, 0, len(tokens))
		for _, token := range tokens {
			if token.ChainID != netDef.ChainID {
				l.logger.Warn("Token has mismatched ChainID in file, skipping token.",
					"file", filePath, "token_symbol", token.Symbol,
					"token_chain_id", token.ChainID, "expected_chain_id", netDef.ChainID)
				continue
			}
			valid = append(valid, token)
		}
		if len(valid) > 0 {
			tokensByNetwork[netDef.Identifier] = valid
			l.logger.Info("Loaded tokens for network", "network", netDef.Identifier, "count", len(valid))
		}
	}
	return tokensByNetwork, nil
}
