package snowflake

import (
	"compress/gzip"
	"encoding/csv"
	"io"
	"strings"
	"testing"

	sf "github.com/snowflakedb/gosnowflake"

	"accessetl/internal/storage"
)

func TestBuildCreateSQL_CustomersExample(t *testing.T) {
	t.Parallel()

	tb := &storage.Table{Name: "Customers", Columns: []storage.Column{
		{Name: "ID", Type: storage.Integer},
		{Name: "Name", Type: storage.Text},
	}}
	cols, err := storage.DestinationColumns(tb, ddlType)
	if err != nil {
		t.Fatalf("DestinationColumns: %v", err)
	}
	got, err := buildCreateSQL(storage.DestinationName(tb.Name), cols)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	want := `CREATE OR REPLACE TABLE "CUSTOMERS" ("ID" NUMBER(38,0), "NAME" VARCHAR(16777216))`
	if got != want {
		t.Fatalf("sql=%q\nwant %q", got, want)
	}
}

func TestDDLType_IsFixed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   storage.ColumnType
		want string
	}{
		{storage.Integer, "NUMBER(38,0)"},
		{storage.Float, "FLOAT"},
		{storage.Text, "VARCHAR(16777216)"},
	}
	r := &Repo{}
	for _, tt := range tests {
		if got := r.ColumnDDLType(tt.in); got != tt.want {
			t.Fatalf("ColumnDDLType(%v)=%q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildPutAndCopySQL(t *testing.T) {
	t.Parallel()

	put := buildPutSQL("ORDERS")
	if put != `PUT 'file://data.csv.gz' @%"ORDERS" AUTO_COMPRESS=FALSE SOURCE_COMPRESSION=GZIP OVERWRITE=TRUE` {
		t.Fatalf("put=%q", put)
	}

	cols := []storage.DestColumn{{Name: "ORDERID"}, {Name: "NOTES"}}
	cp := buildCopySQL("ORDERS", cols, "CONTINUE")
	for _, want := range []string{
		`COPY INTO "ORDERS" ("ORDERID", "NOTES") FROM @%"ORDERS"`,
		`FILES=('data.csv.gz')`,
		`EMPTY_FIELD_AS_NULL=TRUE NULL_IF=()`,
		`ON_ERROR=CONTINUE`,
		`PURGE=TRUE`,
	} {
		if !strings.Contains(cp, want) {
			t.Fatalf("copy sql missing %q: %s", want, cp)
		}
	}
}

func TestEncodeCSVGzip_NullsAndQuoting(t *testing.T) {
	t.Parallel()

	rows := [][]any{
		{int64(1), 2.5, "plain"},
		{int64(2), nil, `say "hi", then leave`},
		{int64(3), 1e21, ""},
		{nil, nil, `\N`},
	}
	r, err := encodeCSVGzip(rows)
	if err != nil {
		t.Fatalf("encodeCSVGzip: %v", err)
	}
	zr, err := gzip.NewReader(r)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	want := `"1","2.5","plain"` + "\n" +
		`"2",,"say ""hi"", then leave"` + "\n" +
		`"3","1e+21",""` + "\n" +
		`,,"\N"` + "\n"
	if string(raw) != want {
		t.Fatalf("csv=%q, want %q", raw, want)
	}

	recs, err := csv.NewReader(strings.NewReader(string(raw))).ReadAll()
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("records=%d, want 4", len(recs))
	}
	if recs[1][2] != `say "hi", then leave` {
		t.Fatalf("quoted field=%q", recs[1][2])
	}
}

func TestRowsLoaded(t *testing.T) {
	t.Parallel()

	cols := []string{"file", "status", "ROWS_PARSED", "ROWS_LOADED"}
	n, err := rowsLoaded(cols, [][]any{{"data.csv.gz", "LOADED", "10", "10"}})
	if err != nil || n != 10 {
		t.Fatalf("rowsLoaded=%d err=%v, want 10", n, err)
	}

	n, err = rowsLoaded(cols, [][]any{{"data.csv.gz", "PARTIALLY_LOADED", int64(10), int64(7)}})
	if err != nil || n != 7 {
		t.Fatalf("rowsLoaded=%d err=%v, want 7", n, err)
	}

	n, err = rowsLoaded([]string{"status"}, [][]any{{"Copy executed with 0 files processed."}})
	if err != nil || n != 0 {
		t.Fatalf("rowsLoaded=%d err=%v, want 0", n, err)
	}

	if _, err := rowsLoaded(cols, [][]any{{"f", "s", "1", "x"}}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestParseAuthenticator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    sf.AuthType
		wantURL string
		wantErr bool
	}{
		{"", sf.AuthTypeSnowflake, "", false},
		{"SNOWFLAKE", sf.AuthTypeSnowflake, "", false},
		{"externalbrowser", sf.AuthTypeExternalBrowser, "", false},
		{"oauth", sf.AuthTypeOAuth, "", false},
		{"snowflake_jwt", sf.AuthTypeJwt, "", false},
		{"username_password_mfa", sf.AuthTypeUsernamePasswordMFA, "", false},
		{"https://acme.okta.com", sf.AuthTypeOkta, "https://acme.okta.com", false},
		{"kerberos", 0, "", true},
	}
	for _, tt := range tests {
		got, u, err := parseAuthenticator(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseAuthenticator(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseAuthenticator(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("parseAuthenticator(%q)=%v, want %v", tt.in, got, tt.want)
		}
		if tt.wantURL != "" && (u == nil || u.String() != tt.wantURL) {
			t.Fatalf("parseAuthenticator(%q) url=%v, want %s", tt.in, u, tt.wantURL)
		}
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	cfg := storage.Config{Kind: "snowflake", Options: map[string]string{
		OptAccount:   "xy12345.eu-west-1",
		OptUser:      "LOADER",
		OptPassword:  "secret",
		OptWarehouse: "LOAD_WH",
		OptDatabase:  "RAW",
		OptSchema:    "ACCESS",
		OptRole:      "LOADER_ROLE",
	}}
	sc, err := buildConfig(cfg)
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if sc.Account != "xy12345.eu-west-1" || sc.Schema != "ACCESS" || sc.Authenticator != sf.AuthTypeSnowflake {
		t.Fatalf("unexpected config: %+v", sc)
	}

	if _, err := buildConfig(storage.Config{Kind: "snowflake"}); err == nil {
		t.Fatalf("expected missing account error")
	}

	cfg.Options[OptAuthenticator] = "snowflake_jwt"
	if _, err := buildConfig(cfg); err == nil || !strings.Contains(err.Error(), "private key") {
		t.Fatalf("expected private key error, got %v", err)
	}
}

func TestNormalizeOnError(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"abort_statement", "CONTINUE", "skip_file", "SKIP_FILE_10", "SKIP_FILE_5%"} {
		if _, err := normalizeOnError(ok); err != nil {
			t.Fatalf("normalizeOnError(%q): %v", ok, err)
		}
	}
	if _, err := normalizeOnError("IGNORE"); err == nil {
		t.Fatalf("expected error for IGNORE")
	}
}
