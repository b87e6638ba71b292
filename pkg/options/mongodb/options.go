// Package mongodb provides MongoDB options.
package mongodb

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/mycvconnect/mhire/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

const redactedPassword = "[REDACTED]"

// Options defines configuration options for MongoDB.
type Options struct {
	// Enabled turns the Mongo-backed record stores on. When false the
	// server keeps verification records in memory (development only).
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	URI      string `json:"uri" mapstructure:"uri"`
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`

	// RecordCollection holds the append-only verification audit trail.
	RecordCollection string `json:"record-collection" mapstructure:"record-collection"`
	// ReferenceCollection holds the enrolled face reference tokens.
	ReferenceCollection string `json:"reference-collection" mapstructure:"reference-collection"`
	// FaceSetCollection holds the Face++ FaceSets used for duplicate checks.
	FaceSetCollection string `json:"faceset-collection" mapstructure:"faceset-collection"`
	// FaceCollection holds the face tokens registered in those FaceSets.
	FaceCollection string `json:"face-collection" mapstructure:"face-collection"`

	MaxPoolSize            uint64        `json:"max-pool-size" mapstructure:"max-pool-size"`
	MinPoolSize            uint64        `json:"min-pool-size" mapstructure:"min-pool-size"`
	MaxConnIdleTime        time.Duration `json:"max-conn-idle-time" mapstructure:"max-conn-idle-time"`
	ConnectTimeout         time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	ServerSelectionTimeout time.Duration `json:"server-selection-timeout" mapstructure:"server-selection-timeout"`
	// OperationTimeout bounds each insert/find issued by the stores.
	OperationTimeout time.Duration `json:"operation-timeout" mapstructure:"operation-timeout"`

	AuthSource string `json:"auth-source" mapstructure:"auth-source"`
	ReplicaSet string `json:"replica-set" mapstructure:"replica-set"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Enabled:                true,
		Host:                   "127.0.0.1",
		Port:                   27017,
		Database:               "mhire",
		RecordCollection:       "verification_records",
		ReferenceCollection:    "face_references",
		FaceSetCollection:      "facesets",
		FaceCollection:         "registered_faces",
		MaxPoolSize:            50,
		MinPoolSize:            0,
		MaxConnIdleTime:        5 * time.Minute,
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 10 * time.Second,
		OperationTimeout:       5 * time.Second,
		AuthSource:             "admin",
	}
}

// MarshalJSON redacts the password and any credentials embedded in the URI.
func (o *Options) MarshalJSON() ([]byte, error) {
	type plain Options
	cp := plain(*o)
	cp.URI = redactURI(o.URI)
	out := struct {
		plain
		Password string `json:"password,omitempty"`
	}{plain: cp}
	if o.Password != "" {
		out.Password = redactedPassword
	}
	return json.Marshal(out)
}

// String returns a log-safe description.
func (o *Options) String() string {
	if o.URI != "" {
		return fmt.Sprintf("MongoDB{uri=%s, database=%s}", redactURI(o.URI), o.Database)
	}
	return fmt.Sprintf("MongoDB{host=%s, port=%d, user=%s, database=%s}", o.Host, o.Port, o.Username, o.Database)
}

// Complete reads the connection string and password from the environment
// when they were not configured explicitly.
func (o *Options) Complete() error {
	if o.URI == "" {
		o.URI = os.Getenv("MONGODB_URI")
	}
	if o.Password == "" {
		o.Password = os.Getenv("MONGODB_PASSWORD")
	}
	if o.Database == "" {
		o.Database = os.Getenv("MONGODB_DB")
	}
	return nil
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.URI == "" {
		if o.Host == "" {
			errs = append(errs, fmt.Errorf("mongodb.host is required when mongodb.uri is empty"))
		}
		if o.Port <= 0 || o.Port > 65535 {
			errs = append(errs, fmt.Errorf("mongodb.port must be between 1 and 65535"))
		}
	} else if !strings.HasPrefix(o.URI, "mongodb://") && !strings.HasPrefix(o.URI, "mongodb+srv://") {
		errs = append(errs, fmt.Errorf("mongodb.uri must start with mongodb:// or mongodb+srv://"))
	}
	if o.Database == "" {
		errs = append(errs, fmt.Errorf("mongodb.database is required"))
	}
	if o.RecordCollection == "" || o.ReferenceCollection == "" || o.FaceSetCollection == "" || o.FaceCollection == "" {
		errs = append(errs, fmt.Errorf("mongodb collection names cannot be empty"))
	}
	return errs
}

// AddFlags adds flags for MongoDB options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "mongodb."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Persist verification records in MongoDB.")
	fs.StringVar(&o.URI, p+"uri", o.URI, "MongoDB connection string (or MONGODB_URI).")
	fs.StringVar(&o.Host, p+"host", o.Host, "MongoDB host, used when uri is empty.")
	fs.IntVar(&o.Port, p+"port", o.Port, "MongoDB port, used when uri is empty.")
	fs.StringVar(&o.Username, p+"username", o.Username, "MongoDB username.")
	fs.StringVar(&o.Password, p+"password", o.Password, "MongoDB password (prefer MONGODB_PASSWORD).")
	fs.StringVar(&o.Database, p+"database", o.Database, "MongoDB database name.")
	fs.StringVar(&o.RecordCollection, p+"record-collection", o.RecordCollection, "Collection for verification records.")
	fs.StringVar(&o.ReferenceCollection, p+"reference-collection", o.ReferenceCollection, "Collection for face reference tokens.")
	fs.StringVar(&o.FaceSetCollection, p+"faceset-collection", o.FaceSetCollection, "Collection for Face++ FaceSets.")
	fs.StringVar(&o.FaceCollection, p+"face-collection", o.FaceCollection, "Collection for face tokens registered in FaceSets.")
	fs.Uint64Var(&o.MaxPoolSize, p+"max-pool-size", o.MaxPoolSize, "Maximum number of pooled connections.")
	fs.Uint64Var(&o.MinPoolSize, p+"min-pool-size", o.MinPoolSize, "Minimum number of pooled connections.")
	fs.DurationVar(&o.MaxConnIdleTime, p+"max-conn-idle-time", o.MaxConnIdleTime, "Maximum connection idle time.")
	fs.DurationVar(&o.ConnectTimeout, p+"connect-timeout", o.ConnectTimeout, "Connection timeout.")
	fs.DurationVar(&o.ServerSelectionTimeout, p+"server-selection-timeout", o.ServerSelectionTimeout, "Server selection timeout.")
	fs.DurationVar(&o.OperationTimeout, p+"operation-timeout", o.OperationTimeout, "Timeout of a single store operation.")
	fs.StringVar(&o.AuthSource, p+"auth-source", o.AuthSource, "Authentication database.")
	fs.StringVar(&o.ReplicaSet, p+"replica-set", o.ReplicaSet, "Replica set name.")
}

// BuildURI returns the configured URI or assembles one from the parts.
func (o *Options) BuildURI() string {
	if o.URI != "" {
		return o.URI
	}

	var b strings.Builder
	b.WriteString("mongodb://")
	if o.Username != "" {
		b.WriteString(url.QueryEscape(o.Username))
		if o.Password != "" {
			b.WriteString(":")
			b.WriteString(url.QueryEscape(o.Password))
		}
		b.WriteString("@")
	}
	b.WriteString(o.Host)
	if o.Port != 0 {
		fmt.Fprintf(&b, ":%d", o.Port)
	}
	b.WriteString("/")

	params := url.Values{}
	if o.Username != "" && o.AuthSource != "" {
		params.Set("authSource", o.AuthSource)
	}
	if o.ReplicaSet != "" {
		params.Set("replicaSet", o.ReplicaSet)
	}
	if len(params) > 0 {
		b.WriteString("?")
		b.WriteString(params.Encode())
	}
	return b.String()
}

func redactURI(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redactedPassword)
	}
	return u.String()
}
