package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/username/portafolio/backend/src/config"
	"github.com/username/portafolio/backend/src/database"
)

const statement = `<table>
<tr><td>Nro. de Mov.</td><td>Nro. de Boleto</td><td>Tipo Mov.</td><td>Concert.</td><td>Liquid.</td><td>Est</td>
<td>Cant. titulos</td><td>Precio</td><td>Comis.</td><td>Iva Com.</td><td>Otros Imp.</td><td>Monto</td><td>Observaciones</td><td>Tipo Cuenta</td></tr>
<tr><td>1</td><td>1001</td><td>Compra (YPFD)</td><td>05/03/2024</td><td>07/03/2024</td><td>Terminada</td>
<td>10</td><td>1500,50</td><td>12,50</td><td>2,63</td><td>0,5</td><td>-15020,63</td><td></td><td>Inversión Argentina Pesos</td></tr>
<tr><td>2</td><td>1002</td><td>Depósito</td><td>01/03/2024</td><td>01/03/2024</td><td>Terminada</td>
<td></td><td></td><td></td><td></td><td></td><td>100000</td><td>Transferencia</td><td>Inversión Argentina Pesos</td></tr>
<tr><td>3</td><td>1003</td><td>Venta (AL30)</td><td>fecha</td><td>12/03/2024</td><td>Terminada</td>
<td>-100</td><td>55,10</td><td>1</td><td>0,21</td><td>0</td><td>5508,79</td><td></td><td>Inversión Argentina Dólares</td></tr>
</table>`

// execute runs the CLI inside an empty working directory so no .env file leaks in.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeStatement(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseCmd_JSON(t *testing.T) {
	path := writeStatement(t, "movimientos.html", statement)

	out, err := execute(t, "parse", path, "--broker", "IOL", "--output", "json", "--log-level", "error")
	require.NoError(t, err)

	var report parseReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Success)
	assert.Equal(t, "movimientos.html", report.File)
	require.Len(t, report.Movements, 3)
	assert.Equal(t, "Purchase", report.Movements[0].Type)
	assert.Equal(t, "YPFD", report.Movements[0].Ticker)
	assert.Equal(t, "05/03/2024", report.Movements[0].ConcertationDate)
	assert.Equal(t, "Transferencia", report.Movements[1].Notes)
	assert.Equal(t, "", report.Movements[2].ConcertationDate)
	assert.Equal(t, 100, report.Movements[2].Quantity)
	assert.Equal(t, "USDollar", report.Movements[2].Currency)
	assert.Equal(t, "01/03/2024", report.DateFrom)
	assert.Equal(t, "05/03/2024", report.DateTo)
	assert.Equal(t, "120529.42", report.TotalAbsoluteAmount)
	assert.Equal(t, "$5,508.79", report.AmountsByCurrency["USDollar"])
}

func TestParseCmd_YAMLAndText(t *testing.T) {
	path := writeStatement(t, "movimientos.htm", statement)

	out, err := execute(t, "parse", path, "-o", "yaml")
	require.NoError(t, err)
	var report map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Equal(t, "movimientos.htm", report["file"])
	assert.Equal(t, 3, report["successfulRows"])

	out, err = execute(t, "parse", path)
	require.NoError(t, err)
	assert.Contains(t, out, "movimientos.htm")
	assert.Contains(t, out, "3 parsed")
	assert.Contains(t, out, "YPFD")
	assert.Contains(t, out, "Period: 01/03/2024 - 05/03/2024")
}

func TestParseCmd_Failures(t *testing.T) {
	headerOnly := writeStatement(t, "vacio.html", `<table><tr><td>Nro. de Mov.</td><td>Nro. de Boleto</td><td>Tipo Mov.</td>
<td>Concert.</td><td>Liquid.</td><td>Est</td><td>Cant. titulos</td></tr></table>`)

	out, err := execute(t, "parse", headerOnly)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no movements extracted")
	assert.Contains(t, out, "error: no movements extracted")

	_, err = execute(t, "parse", headerOnly, "--broker", "BALANZ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no parser available")

	_, err = execute(t, "parse", headerOnly, "--output", "xml")
	assert.ErrorContains(t, err, "unknown output format")

	_, err = execute(t, "parse", filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.ErrorContains(t, err, "opening statement")
}

func TestBrokersCmd(t *testing.T) {
	out, err := execute(t, "brokers")
	require.NoError(t, err)
	assert.Contains(t, out, "Parsers:    IOL")
	assert.Contains(t, out, ".xlsx")
	assert.Contains(t, out, "Accepted at upload: IOL, BALANZ, BULL")
}

func TestNewServer_Routes(t *testing.T) {
	_, err := execute(t, "brokers")
	require.NoError(t, err)

	db, err := database.Open(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	defer db.Close()

	server := newServer(db, config.Cfg)
	assert.Equal(t, ":"+config.Cfg.Port, server.Addr)

	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio/brokers", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"IOL"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRunServer_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	cancel()
	assert.NoError(t, runServer(ctx, server))
}
