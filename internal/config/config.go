package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Config holds all configuration for the consent store
type Config struct {
	Database DatabasesConfig `mapstructure:"database"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Consent  ConsentConfig   `mapstructure:"consent"`
}

// DatabasesConfig holds all database configurations
type DatabasesConfig struct {
	Consent DatabaseConfig `mapstructure:"consent"`
}

// DatabaseConfig holds individual database configuration
type DatabaseConfig struct {
	Type            string        `mapstructure:"type" validate:"oneof=mysql postgres sqlite"`
	Hostname        string        `mapstructure:"hostname" validate:"required_unless=Type sqlite"`
	Port            int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database" validate:"required"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
	Output string `mapstructure:"output" validate:"oneof=stdout stderr"`
}

// ConsentConfig holds consent-related configuration
type ConsentConfig struct {
	DefaultOrgID       string                 `mapstructure:"default_org_id" validate:"required"`
	StatusMappings     ConsentStatusMappings  `mapstructure:"status_mappings"`
	AuthStatusMappings AuthStatusMappings     `mapstructure:"auth_status_mappings"`
	TransitionPolicy   TransitionPolicyConfig `mapstructure:"transition_policy"`
	Idempotency        IdempotencyConfig      `mapstructure:"idempotency"`
}

// ConsentStatusMappings holds the deployment strings of the consent lifecycle states
type ConsentStatusMappings struct {
	ReceivedStatus              string `mapstructure:"received_status" validate:"required"`
	AwaitingAuthorisationStatus string `mapstructure:"awaiting_authorisation_status" validate:"required"`
	AuthorisedStatus            string `mapstructure:"authorised_status" validate:"required"`
	RejectedStatus              string `mapstructure:"rejected_status" validate:"required"`
	ConsumedStatus              string `mapstructure:"consumed_status" validate:"required"`
	RevokedStatus               string `mapstructure:"revoked_status" validate:"required"`
	ExpiredStatus               string `mapstructure:"expired_status" validate:"required"`
}

// AuthStatusMappings holds the deployment strings of the authorization resource states
type AuthStatusMappings struct {
	CreatedStatus               string `mapstructure:"created_status" validate:"required"`
	AwaitingAuthorisationStatus string `mapstructure:"awaiting_authorisation_status" validate:"required"`
	AuthorisedStatus            string `mapstructure:"authorised_status" validate:"required"`
	RejectedStatus              string `mapstructure:"rejected_status" validate:"required"`
	RevokedStatus               string `mapstructure:"revoked_status" validate:"required"`
	ExpiredStatus               string `mapstructure:"expired_status" validate:"required"`
}

// TransitionPolicyConfig selects and parameterises the permitted-transitions policy
type TransitionPolicyConfig struct {
	Type            string           `mapstructure:"type" validate:"required"`
	Transitions     []TransitionRule `mapstructure:"transitions" validate:"dive"`
	AuthTransitions []TransitionRule `mapstructure:"auth_transitions" validate:"dive"`
	RegoFile        string           `mapstructure:"rego_file"`
}

// TransitionRule lists the statuses reachable from a single status
type TransitionRule struct {
	From string   `mapstructure:"from" validate:"required"`
	To   []string `mapstructure:"to" validate:"required,min=1"`
}

// IdempotencyConfig holds the replay detection settings for consent creation
type IdempotencyConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	HeaderName         string `mapstructure:"header_name" validate:"required_if=Enabled true"`
	AllowedTimeMinutes int    `mapstructure:"allowed_time_minutes" validate:"gte=0"`
}

var validate = validator.New()

// Default returns the configuration used when no file overrides a value
func Default() *Config {
	return &Config{
		Database: DatabasesConfig{
			Consent: DatabaseConfig{
				Type:            "mysql",
				Hostname:        "localhost",
				Port:            3306,
				Database:        "consent_mgt",
				SSLMode:         "disable",
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Consent: ConsentConfig{
			DefaultOrgID: "DEFAULT_ORG",
			StatusMappings: ConsentStatusMappings{
				ReceivedStatus:              "Received",
				AwaitingAuthorisationStatus: "AwaitingAuthorisation",
				AuthorisedStatus:            "Authorised",
				RejectedStatus:              "Rejected",
				ConsumedStatus:              "Consumed",
				RevokedStatus:               "Revoked",
				ExpiredStatus:               "Expired",
			},
			AuthStatusMappings: AuthStatusMappings{
				CreatedStatus:               "Created",
				AwaitingAuthorisationStatus: "AwaitingAuthorisation",
				AuthorisedStatus:            "Authorised",
				RejectedStatus:              "Rejected",
				RevokedStatus:               "SysRevoked",
				ExpiredStatus:               "SysExpired",
			},
			TransitionPolicy: TransitionPolicyConfig{
				Type: "static",
			},
			Idempotency: IdempotencyConfig{
				Enabled:            true,
				HeaderName:         "x-idempotency-key",
				AllowedTimeMinutes: 1440,
			},
		},
	}
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
		v.AddConfigPath(".")
	}

	setDefaults(v, Default())

	// CONSENT_MGT_DATABASE_CONSENT_PASSWORD overrides database.consent.password
	v.SetEnvPrefix("CONSENT_MGT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	db := d.Database.Consent
	v.SetDefault("database.consent.type", db.Type)
	v.SetDefault("database.consent.hostname", db.Hostname)
	v.SetDefault("database.consent.port", db.Port)
	v.SetDefault("database.consent.user", db.User)
	v.SetDefault("database.consent.password", db.Password)
	v.SetDefault("database.consent.database", db.Database)
	v.SetDefault("database.consent.ssl_mode", db.SSLMode)
	v.SetDefault("database.consent.max_open_conns", db.MaxOpenConns)
	v.SetDefault("database.consent.max_idle_conns", db.MaxIdleConns)
	v.SetDefault("database.consent.conn_max_lifetime", db.ConnMaxLifetime)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)

	c := d.Consent
	v.SetDefault("consent.default_org_id", c.DefaultOrgID)
	v.SetDefault("consent.status_mappings.received_status", c.StatusMappings.ReceivedStatus)
	v.SetDefault("consent.status_mappings.awaiting_authorisation_status", c.StatusMappings.AwaitingAuthorisationStatus)
	v.SetDefault("consent.status_mappings.authorised_status", c.StatusMappings.AuthorisedStatus)
	v.SetDefault("consent.status_mappings.rejected_status", c.StatusMappings.RejectedStatus)
	v.SetDefault("consent.status_mappings.consumed_status", c.StatusMappings.ConsumedStatus)
	v.SetDefault("consent.status_mappings.revoked_status", c.StatusMappings.RevokedStatus)
	v.SetDefault("consent.status_mappings.expired_status", c.StatusMappings.ExpiredStatus)
	v.SetDefault("consent.auth_status_mappings.created_status", c.AuthStatusMappings.CreatedStatus)
	v.SetDefault("consent.auth_status_mappings.awaiting_authorisation_status", c.AuthStatusMappings.AwaitingAuthorisationStatus)
	v.SetDefault("consent.auth_status_mappings.authorised_status", c.AuthStatusMappings.AuthorisedStatus)
	v.SetDefault("consent.auth_status_mappings.rejected_status", c.AuthStatusMappings.RejectedStatus)
	v.SetDefault("consent.auth_status_mappings.revoked_status", c.AuthStatusMappings.RevokedStatus)
	v.SetDefault("consent.auth_status_mappings.expired_status", c.AuthStatusMappings.ExpiredStatus)
	v.SetDefault("consent.transition_policy.type", c.TransitionPolicy.Type)
	v.SetDefault("consent.idempotency.enabled", c.Idempotency.Enabled)
	v.SetDefault("consent.idempotency.header_name", c.Idempotency.HeaderName)
	v.SetDefault("consent.idempotency.allowed_time_minutes", c.Idempotency.AllowedTimeMinutes)
}

// Validate checks struct constraints and reports every violated field
func Validate(config *Config) error {
	err := validate.Struct(config)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	var combined error
	for _, fe := range fieldErrs {
		combined = multierr.Append(combined,
			fmt.Errorf("%s failed on '%s' (value: %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return combined
}

// GetDSN returns the driver specific connection string
func (d *DatabaseConfig) GetDSN() string {
	switch d.Type {
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(d.User, d.Password),
			Host:   fmt.Sprintf("%s:%d", d.Hostname, d.Port),
			Path:   "/" + d.Database,
		}
		if d.SSLMode != "" {
			u.RawQuery = "sslmode=" + url.QueryEscape(d.SSLMode)
		}
		return u.String()
	case "sqlite":
		return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", d.Database)
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
			d.User,
			d.Password,
			d.Hostname,
			d.Port,
			d.Database,
		)
	}
}

// IsStatusAllowed checks if a given status is a valid consent status
func (c *ConsentConfig) IsStatusAllowed(status string) bool {
	for _, s := range c.GetAllowedStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// IsAuthStatusAllowed checks if a given status is a valid authorization status
func (c *ConsentConfig) IsAuthStatusAllowed(status string) bool {
	for _, s := range c.GetAllowedAuthStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminalStatus checks if the given status ends the consent lifecycle
func (c *ConsentConfig) IsTerminalStatus(status string) bool {
	m := c.StatusMappings
	return status == m.RejectedStatus ||
		status == m.ConsumedStatus ||
		status == m.RevokedStatus ||
		status == m.ExpiredStatus
}

// GetAllowedStatuses returns a list of all configured consent statuses
func (c *ConsentConfig) GetAllowedStatuses() []string {
	m := c.StatusMappings
	return []string{
		m.ReceivedStatus,
		m.AwaitingAuthorisationStatus,
		m.AuthorisedStatus,
		m.RejectedStatus,
		m.ConsumedStatus,
		m.RevokedStatus,
		m.ExpiredStatus,
	}
}

// GetAllowedAuthStatuses returns a list of all configured authorization statuses
func (c *ConsentConfig) GetAllowedAuthStatuses() []string {
	m := c.AuthStatusMappings
	return []string{
		m.CreatedStatus,
		m.AwaitingAuthorisationStatus,
		m.AuthorisedStatus,
		m.RejectedStatus,
		m.RevokedStatus,
		m.ExpiredStatus,
	}
}

// ResolveOrgID returns orgID, or the configured default org when it is empty
func (c *ConsentConfig) ResolveOrgID(orgID string) string {
	if orgID == "" {
		return c.DefaultOrgID
	}
	return orgID
}
