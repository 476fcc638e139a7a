package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/flagx"
	"github.com/dmitrijs2005/gophchat/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations use
// timex.Duration. Zero values leave the corresponding Config field alone.
type JsonConfig struct {
	LocalDBPath    string         `json:"local_db"`
	LogLevel       string         `json:"log_level"`
	MongoURI       string         `json:"mongo_uri"`
	MongoDatabase  string         `json:"mongo_database"`
	ConnectTimeout timex.Duration `json:"connect_timeout"`
	ChangeSource   string         `json:"change_source"`
	RedisURL       string         `json:"redis_url"`

	ObjectStore string `json:"object_store"`
	S3          struct {
		Region        string `json:"region"`
		Bucket        string `json:"bucket"`
		Endpoint      string `json:"endpoint"`
		AccessKey     string `json:"access_key"`
		SecretKey     string `json:"secret_key"`
		PublicBaseURL string `json:"public_base_url"`
	} `json:"s3"`
	Cloudinary struct {
		CloudName string `json:"cloud_name"`
		APIKey    string `json:"api_key"`
		APISecret string `json:"api_secret"`
		Folder    string `json:"folder"`
	} `json:"cloudinary"`

	SessionSecret     string         `json:"session_secret"`
	SessionTTL        timex.Duration `json:"session_ttl"`
	RecentLoginWindow timex.Duration `json:"recent_login_window"`
	GoogleIDSecret    string         `json:"google_id_secret"`
	GitHubIDSecret    string         `json:"github_id_secret"`

	CleanupInterval     timex.Duration `json:"cleanup_interval"`
	CleanupConcurrency  int            `json:"cleanup_concurrency"`
	TaskTimeout         timex.Duration `json:"task_timeout"`
	FeedRecheckInterval timex.Duration `json:"feed_recheck_interval"`
	FeedRetryDelay      timex.Duration `json:"feed_retry_delay"`

	MaxImageBytes int64 `json:"max_image_bytes"`
	MaxVideoBytes int64 `json:"max_video_bytes"`

	TimeLayout string   `json:"time_layout"`
	TimeZone   string   `json:"time_zone"`
	Avatars    []string `json:"avatars"`
}

// parseJson overlays cfg with the JSON file named by -c/-config, if any.
func parseJson(cfg *Config) error {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	jc.apply(cfg)
	return nil
}

func (jc *JsonConfig) apply(cfg *Config) {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	dur := func(dst *time.Duration, v timex.Duration) {
		if v.Duration != 0 {
			*dst = v.Duration
		}
	}
	num := func(dst *int64, v int64) {
		if v != 0 {
			*dst = v
		}
	}

	str(&cfg.LocalDBPath, jc.LocalDBPath)
	str(&cfg.LogLevel, jc.LogLevel)
	str(&cfg.MongoURI, jc.MongoURI)
	str(&cfg.MongoDatabase, jc.MongoDatabase)
	dur(&cfg.ConnectTimeout, jc.ConnectTimeout)
	str(&cfg.ChangeSource, jc.ChangeSource)
	str(&cfg.RedisURL, jc.RedisURL)

	str(&cfg.ObjectStore, jc.ObjectStore)
	str(&cfg.S3.Region, jc.S3.Region)
	str(&cfg.S3.Bucket, jc.S3.Bucket)
	str(&cfg.S3.Endpoint, jc.S3.Endpoint)
	str(&cfg.S3.AccessKey, jc.S3.AccessKey)
	str(&cfg.S3.SecretKey, jc.S3.SecretKey)
	str(&cfg.S3.PublicBaseURL, jc.S3.PublicBaseURL)
	str(&cfg.Cloudinary.CloudName, jc.Cloudinary.CloudName)
	str(&cfg.Cloudinary.APIKey, jc.Cloudinary.APIKey)
	str(&cfg.Cloudinary.APISecret, jc.Cloudinary.APISecret)
	str(&cfg.Cloudinary.Folder, jc.Cloudinary.Folder)

	str(&cfg.SessionSecret, jc.SessionSecret)
	dur(&cfg.SessionTTL, jc.SessionTTL)
	dur(&cfg.RecentLoginWindow, jc.RecentLoginWindow)
	str(&cfg.GoogleIDSecret, jc.GoogleIDSecret)
	str(&cfg.GitHubIDSecret, jc.GitHubIDSecret)

	dur(&cfg.CleanupInterval, jc.CleanupInterval)
	if jc.CleanupConcurrency != 0 {
		cfg.CleanupConcurrency = jc.CleanupConcurrency
	}
	dur(&cfg.TaskTimeout, jc.TaskTimeout)
	dur(&cfg.FeedRecheckInterval, jc.FeedRecheckInterval)
	dur(&cfg.FeedRetryDelay, jc.FeedRetryDelay)
	num(&cfg.MaxImageBytes, jc.MaxImageBytes)
	num(&cfg.MaxVideoBytes, jc.MaxVideoBytes)

	str(&cfg.TimeLayout, jc.TimeLayout)
	str(&cfg.TimeZone, jc.TimeZone)
	if len(jc.Avatars) > 0 {
		cfg.Avatars = jc.Avatars
	}
}
