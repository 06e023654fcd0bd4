package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type StructuredJSONConfig struct {
	Gateway struct {
		Address        string   `json:"address"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"gateway,omitempty"`

	Storage struct {
		DB struct {
			DSN string `json:"dsn"`
		} `json:"db,omitempty"`
	} `json:"storage,omitempty"`

	Workers struct {
		SyncInterval        Duration `json:"sync_interval"`
		RefreshLimit        int      `json:"refresh_limit"`
		CriticalCollections []string `json:"critical_collections"`
	} `json:"workers,omitempty"`

	Preload struct {
		Limit         int      `json:"limit"`
		Entities      []string `json:"entities"`
		AdminEntities []string `json:"admin_entities"`
	} `json:"preload,omitempty"`

	Session struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	} `json:"session,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		Gateway: Gateway{
			Address:        jsonCfg.Gateway.Address,
			RequestTimeout: time.Duration(jsonCfg.Gateway.RequestTimeout),
		},
		Storage: Storage{
			DB: DB{
				DSN: jsonCfg.Storage.DB.DSN,
			},
		},
		Workers: Workers{
			SyncInterval:        time.Duration(jsonCfg.Workers.SyncInterval),
			RefreshLimit:        jsonCfg.Workers.RefreshLimit,
			CriticalCollections: jsonCfg.Workers.CriticalCollections,
		},
		Preload: Preload{
			Limit:         jsonCfg.Preload.Limit,
			Entities:      jsonCfg.Preload.Entities,
			AdminEntities: jsonCfg.Preload.AdminEntities,
		},
		Session: Session{
			Token: jsonCfg.Session.Token,
			Role:  jsonCfg.Session.Role,
		},
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
