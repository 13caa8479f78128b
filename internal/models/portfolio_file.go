package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ParsePortfolio decodes a portfolio snapshot. ext selects the format:
// ".toml", ".yaml"/".yml", anything else is treated as JSON.
func ParsePortfolio(data []byte, ext string) (PortfolioSnapshot, error) {
	var portfolio PortfolioSnapshot
	var err error
	switch strings.ToLower(ext) {
	case ".toml":
		err = toml.Unmarshal(data, &portfolio)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &portfolio)
	default:
		err = json.Unmarshal(data, &portfolio)
	}
	if err != nil {
		return PortfolioSnapshot{}, fmt.Errorf("failed to parse portfolio: %w", err)
	}
	return portfolio, nil
}
