package e2e

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/brokerflux/config"
	"github.com/kilianp07/brokerflux/extension"
	"github.com/kilianp07/brokerflux/infra/logger"
	"github.com/kilianp07/brokerflux/infra/mqtt"
)

const (
	e2eOrg    = "e2e_org"
	e2eBucket = "e2e_bucket"
	e2eToken  = "e2e-token"
)

// junitReport is a minimal representation of a JUnit XML report. The E2E
// suite writes such a report so CI systems can display the results.
type junitReport struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name    string  `xml:"name,attr"`
	Failure *string `xml:"failure,omitempty"`
	Time    float64 `xml:"time,attr"`
}

func writeJUnit(path string, rep junitReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	return enc.Encode(rep)
}

// startInflux starts an InfluxDB 2.7 container initialised with the e2e
// organisation, bucket and token. It returns the host and mapped port.
func startInflux(ctx context.Context, t *testing.T) (tc.Container, string, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "e2e",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         e2eOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      e2eBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": e2eToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "8086")
	return cont, host, port.Port()
}

// startMosquitto spins up a Mosquitto broker accepting anonymous clients.
func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "1883")
	return cont, fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

func writeProperties(t *testing.T, home, content string) {
	t.Helper()
	path := filepath.Join(home, filepath.FromSlash(config.ConfigFile))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write properties: %v", err)
	}
}

func waitFor(ctx context.Context, t *testing.T, what string, cond func() bool) {
	t.Helper()
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	for !cond() {
		select {
		case <-ctx.Done():
			t.Fatalf("timed out waiting for %s", what)
		case <-tick.C:
		}
	}
}

// Test_E2E_SysMetricsToInflux mirrors the Mosquitto $SYS tree into a
// Prometheus registry and checks the extension writes it to InfluxDB 2.7
// through the cloud sender.
func Test_E2E_SysMetricsToInflux(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	start := time.Now()

	influxCont, host, port := startInflux(ctx, t)
	defer influxCont.Terminate(ctx) //nolint:errcheck
	mqttCont, broker := startMosquitto(ctx, t)
	defer mqttCont.Terminate(ctx) //nolint:errcheck
	t.Logf("InfluxDB started at %s:%s, Mosquitto at %s", host, port, broker)

	reg := prometheus.NewRegistry()
	bridge, err := mqtt.NewSysBridge(mqtt.Config{Broker: broker, ClientID: "brokerflux-e2e"}, reg)
	if err != nil {
		t.Fatalf("sys bridge: %v", err)
	}
	defer bridge.Close()
	waitFor(ctx, t, "$SYS messages", func() bool { return bridge.Gauges() > 0 })

	home := t.TempDir()
	writeProperties(t, home, fmt.Sprintf(
		"mode=cloud\nprotocol=http\nhost=%s\nport=%s\nauth=%s\nbucket=%s\norganization=%s\nprefix=e2e.\nreportingInterval=1\ntags=env=e2e\n",
		host, port, e2eToken, e2eBucket, e2eOrg))

	ext := extension.New()
	if err := ext.Start(ctx, extension.StartInput{HomeFolder: home, Gatherer: reg, Logger: logger.New("e2e")}); err != nil {
		t.Fatalf("start extension: %v", err)
	}
	defer ext.Stop(ctx)

	cli := NewInfluxClient(fmt.Sprintf("http://%s:%s", host, port), e2eOrg, e2eBucket, e2eToken)
	defer cli.Close()
	waitFor(ctx, t, "points in InfluxDB", func() bool {
		n, err := cli.CountPoints(ctx, "e2e.brokerflux_sys_messages_total")
		if err != nil {
			t.Logf("query: %v", err)
		}
		return n > 0
	})

	rep := junitReport{Name: "e2e", Tests: 1, Cases: []junitTestCase{{Name: t.Name(), Time: time.Since(start).Seconds()}}}
	if err := writeJUnit(filepath.Join(t.TempDir(), "e2e.xml"), rep); err != nil {
		t.Logf("write junit: %v", err)
	}
}
