package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"facerank/internal/rating"
)

type Config struct {
	// SQLDriver is either "sqlite3" or "postgres".
	SQLDriver, SQLDSN string

	// HTTPAddr is the listen address of the API server.
	HTTPAddr string

	// KFactor controls how much a single vote moves ratings.
	KFactor float64

	// InitialRating is given to every new photo.
	InitialRating float64

	// AllowSelfVote lets a voter cast a vote involving their own photos.
	AllowSelfVote bool

	// DuplicateVoteWindow rejects a vote on the same pair by the same voter
	// within this duration, 0 disables the guard.
	DuplicateVoteWindow Duration

	// MaxCommitRetries is how many times a vote commit that could not be
	// serialized is retried before giving up.
	MaxCommitRetries int

	LeaderboardMaxLimit int
	// LeaderboardMinVotes hides photos with fewer votes from the leaderboard.
	LeaderboardMinVotes int

	// VoteRatePerMinute is the per-voter API rate limit, 0 disables it.
	VoteRatePerMinute int

	// VerifyInterval is how often the server replays the vote ledger against
	// the stored ratings, 0 disables the check.
	VerifyInterval Duration
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		SQLDriver:           "sqlite3",
		SQLDSN:              "./facerank.db",
		HTTPAddr:            "127.0.0.1:3001",
		KFactor:             rating.DefaultKFactor,
		InitialRating:       rating.DefaultInitialRating,
		DuplicateVoteWindow: Duration(30 * time.Second),
		MaxCommitRetries:    5,
		LeaderboardMaxLimit: 100,
		VoteRatePerMinute:   200,
		VerifyInterval:      Duration(time.Hour),
	}
}

func NewFromUserConfigDir() (*Config, error) {
	c := &Config{}
	if err := c.ReloadFromUserConfigDir(); err != nil {
		return nil, err
	}

	return c, nil
}

// Validate returns an error if the configuration cannot be used.
func (c *Config) Validate() error {
	switch c.SQLDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unknown SQL driver %q", c.SQLDriver)
	}

	if c.SQLDSN == "" {
		return errors.New("empty SQL DSN")
	}
	if c.KFactor <= 0 {
		return fmt.Errorf("K factor must be > 0, got %v", c.KFactor)
	}
	if c.MaxCommitRetries < 0 {
		return errors.New("MaxCommitRetries must be ≥ 0")
	}
	if c.LeaderboardMaxLimit < 1 {
		return errors.New("LeaderboardMaxLimit must be ≥ 1")
	}
	if c.DuplicateVoteWindow < 0 || c.VerifyInterval < 0 || c.VoteRatePerMinute < 0 || c.LeaderboardMinVotes < 0 {
		return errors.New("negative durations, rates and vote counts are invalid")
	}

	return nil
}

func (c *Config) expandFromEnv() error {
	vars := []struct {
		src string
		set func(string) error
	}{
		{"FACERANK_SQL_DRIVER", func(v string) error { c.SQLDriver = v; return nil }},
		{"FACERANK_SQL_DSN", func(v string) error { c.SQLDSN = v; return nil }},
		{"FACERANK_HTTP_ADDR", func(v string) error { c.HTTPAddr = v; return nil }},
		{"FACERANK_K_FACTOR", func(v string) (err error) {
			c.KFactor, err = strconv.ParseFloat(v, 64)
			return err
		}},
		{"FACERANK_ALLOW_SELF_VOTE", func(v string) (err error) {
			c.AllowSelfVote, err = strconv.ParseBool(v)
			return err
		}},
		{"FACERANK_DUPLICATE_VOTE_WINDOW", func(v string) error {
			d, err := time.ParseDuration(v)
			c.DuplicateVoteWindow = Duration(d)
			return err
		}},
		{"FACERANK_VERIFY_INTERVAL", func(v string) error {
			d, err := time.ParseDuration(v)
			c.VerifyInterval = Duration(d)
			return err
		}},
		{"FACERANK_VOTE_RATE_PER_MINUTE", func(v string) (err error) {
			c.VoteRatePerMinute, err = strconv.Atoi(v)
			return err
		}},
	}

	for _, v := range vars {
		if str := os.Getenv(v.src); str != "" {
			if err := v.set(str); err != nil {
				return fmt.Errorf("invalid %s: %w", v.src, err)
			}
		}
	}

	return nil
}

func (c *Config) ReloadFromUserConfigDir() error {
	*c = Default()

	path, err := getOrCreateUserConfigPath()
	if err != nil {
		return err
	}
	log.Printf("debug: reading conf from %s", path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return c.expandFromEnv()
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	// Decoding over the defaults keeps them for missing keys.
	if err := json.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("unable to parse %s: %w", path, err)
	}

	return c.expandFromEnv()
}

func getOrCreateUserConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(configDir, "facerank")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}

	return filepath.Join(dir, "config.json"), nil
}

func (c *Config) Write() error {
	path, err := getOrCreateUserConfigPath()
	if err != nil {
		return err
	}
	log.Printf("debug: writing conf to %s", path)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	if err := enc.Encode(c); err != nil {
		if err2 := f.Close(); err2 != nil {
			return fmt.Errorf("unable to close file (%s) after error: %w", err2, err)
		}

		return err
	}

	return f.Close()
}

// Duration is a time.Duration read and written as a string like "30s".
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}

	tmp, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(tmp)
	return nil
}
