package kafka

import (
	"fmt"
	"slices"
	"time"
)

var (
	saslMechanisms = []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"}
	compressions   = []string{"none", "gzip", "snappy", "lz4", "zstd"}
)

// Config is the kafka section: connection settings shared by the job
// queue consumer and the producer behind job events.
type Config struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	GroupID string   `yaml:"group_id" mapstructure:"group_id"`

	TLS  TLSConfig  `yaml:"tls" mapstructure:"tls"`
	SASL SASLConfig `yaml:"sasl" mapstructure:"sasl"`

	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MetadataTTL time.Duration `yaml:"metadata_ttl" mapstructure:"metadata_ttl"`

	Producer ProducerConfig `yaml:"producer" mapstructure:"producer"`
	Consumer ConsumerConfig `yaml:"consumer" mapstructure:"consumer"`
}

type TLSConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	SkipVerify bool   `yaml:"skip_verify" mapstructure:"skip_verify"`
	CAFile     string `yaml:"ca_file" mapstructure:"ca_file"`
	CertFile   string `yaml:"cert_file" mapstructure:"cert_file"`
	KeyFile    string `yaml:"key_file" mapstructure:"key_file"`
}

// SASLConfig is off while Mechanism is empty.
type SASLConfig struct {
	Mechanism string `yaml:"mechanism" mapstructure:"mechanism"`
	Username  string `yaml:"username" mapstructure:"username"`
	Password  string `yaml:"password" mapstructure:"password"`
}

type ProducerConfig struct {
	Compression string `yaml:"compression" mapstructure:"compression"`
	// Retries counts publish attempts on top of the writer's own.
	Retries      int           `yaml:"retries" mapstructure:"retries"`
	BatchSize    int           `yaml:"batch_size" mapstructure:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout" mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	// RequiredAcks is -1 (all replicas, the default) or 1 (leader only).
	RequiredAcks int `yaml:"required_acks" mapstructure:"required_acks"`
}

type ConsumerConfig struct {
	SessionTimeout    time.Duration `yaml:"session_timeout" mapstructure:"session_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`
	RebalanceTimeout  time.Duration `yaml:"rebalance_timeout" mapstructure:"rebalance_timeout"`
}

func (c *Config) ApplyDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.GroupID == "" {
		c.GroupID = "meetingflow-workers"
	}
	setDuration(&c.DialTimeout, 10*time.Second)
	setDuration(&c.IdleTimeout, 30*time.Second)
	setDuration(&c.MetadataTTL, 6*time.Second)

	p := &c.Producer
	if p.Compression == "" {
		p.Compression = "snappy"
	}
	if p.Retries <= 0 {
		p.Retries = 3
	}
	if p.BatchSize <= 0 {
		// Job events are low volume; flush each one.
		p.BatchSize = 1
	}
	setDuration(&p.BatchTimeout, 50*time.Millisecond)
	setDuration(&p.WriteTimeout, 10*time.Second)
	if p.RequiredAcks == 0 {
		p.RequiredAcks = -1
	}

	setDuration(&c.Consumer.SessionTimeout, 30*time.Second)
	setDuration(&c.Consumer.HeartbeatInterval, 3*time.Second)
	setDuration(&c.Consumer.RebalanceTimeout, 30*time.Second)
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

// Validate skips a disabled section.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 {
		return fmt.Errorf("brokers are required")
	}
	if !slices.Contains(compressions, c.Producer.Compression) {
		return fmt.Errorf("producer.compression must be one of %v", compressions)
	}
	if a := c.Producer.RequiredAcks; a != -1 && a != 1 {
		return fmt.Errorf("producer.required_acks must be -1 or 1")
	}
	if c.Consumer.HeartbeatInterval >= c.Consumer.SessionTimeout {
		return fmt.Errorf("consumer.heartbeat_interval must be shorter than session_timeout")
	}
	if m := c.SASL.Mechanism; m != "" {
		if !slices.Contains(saslMechanisms, m) {
			return fmt.Errorf("sasl.mechanism %q not one of %v", m, saslMechanisms)
		}
		if c.SASL.Username == "" {
			return fmt.Errorf("sasl.username is required")
		}
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return fmt.Errorf("tls.cert_file and tls.key_file go together")
	}
	return nil
}
