package urlstrategy

import (
	"fmt"
)

// StrategyType represents the type of URL strategy
type StrategyType string

const (
	// StrategyTypeContentBased routes downloads through the file API
	StrategyTypeContentBased StrategyType = "content-based"

	// StrategyTypeCDN points downloads at a CDN in front of the storage root
	StrategyTypeCDN StrategyType = "cdn"

	// StrategyTypeStorageDelegated lets backends presign direct downloads
	StrategyTypeStorageDelegated StrategyType = "storage-delegated"
)

// Config holds configuration for URL strategy creation
type Config struct {
	Type            StrategyType
	APIBaseURL      string               // content-based, and the storage-delegated fallback
	DownloadPattern string               // content-based route pattern
	CDNBaseURL      string               // CDN strategy
	Presigners      map[string]Presigner // storage-delegated strategy
}

// NewStrategy creates a URL strategy based on the configuration. An empty
// type selects the content-based strategy.
func NewStrategy(config Config) (Strategy, error) {
	contentBased := NewContentBasedStrategy(config.APIBaseURL)
	if config.DownloadPattern != "" {
		contentBased.Pattern = config.DownloadPattern
	}

	switch config.Type {
	case "", StrategyTypeContentBased:
		return contentBased, nil

	case StrategyTypeCDN:
		if config.CDNBaseURL == "" {
			return nil, fmt.Errorf("CDN base URL is required for CDN strategy")
		}
		return NewCDNStrategy(config.CDNBaseURL), nil

	case StrategyTypeStorageDelegated:
		if len(config.Presigners) == 0 {
			return nil, fmt.Errorf("presigners are required for storage-delegated strategy")
		}
		return NewStorageDelegatedStrategy(config.Presigners, contentBased), nil

	default:
		return nil, fmt.Errorf("unknown URL strategy type: %s", config.Type)
	}
}
