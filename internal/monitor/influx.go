package monitor

import (
	"fmt"
	"strings"

	influx "github.com/influxdata/influxdb/client/v2"

	"github.com/bcaldwell/moneymanager/pkg/config"
)

// Writer is the part of the influx client the monitor needs
type Writer interface {
	Write(bp influx.BatchPoints) error
}

// CreateInfluxClient returns nil without error when no influx endpoint is configured
func CreateInfluxClient(secrets config.InfluxSecrets) (influx.Client, error) {
	if secrets.InfluxEndpoint == "" {
		return nil, nil
	}

	return influx.NewHTTPClient(influx.HTTPConfig{
		Addr:     secrets.InfluxEndpoint,
		Username: secrets.InfluxUsername,
		Password: secrets.InfluxPassword,
	})
}

// OpenWriter connects the influx sink when both an endpoint and a database are configured. The
// returned close func is never nil and releases the client whether or not it is used.
func OpenWriter(secrets config.InfluxSecrets, database string) (Writer, func() error, error) {
	noop := func() error { return nil }

	influxClient, err := CreateInfluxClient(secrets)
	if err != nil {
		return nil, noop, err
	}
	if influxClient == nil {
		return nil, noop, nil
	}
	if database == "" {
		return nil, influxClient.Close, nil
	}

	if err := EnsureDatabase(influxClient, database); err != nil {
		influxClient.Close()
		return nil, noop, err
	}

	return influxClient, influxClient.Close, nil
}

// EnsureDatabase creates the database, influx treats an existing one as success
func EnsureDatabase(influxClient influx.Client, name string) error {
	name = strings.Split(name, " ")[0]

	q := influx.NewQuery(fmt.Sprintf("CREATE DATABASE %s", name), "", "")
	response, err := influxClient.Query(q)
	if err != nil {
		return fmt.Errorf("failed to create influx database %s: %w", name, err)
	}
	if response.Error() != nil {
		return fmt.Errorf("failed to create influx database %s: %w", name, response.Error())
	}

	return nil
}
