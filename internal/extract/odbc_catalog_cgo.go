//go:build cgo

package extract

/*
#cgo linux LDFLAGS: -lodbc
#cgo darwin LDFLAGS: -lodbc
#cgo freebsd LDFLAGS: -lodbc
#cgo windows LDFLAGS: -lodbc32

#ifdef _WIN32
#include <windows.h>
#endif
#include <stdio.h>
#include <stdlib.h>
#include <string.h>
#include <sql.h>
#include <sqlext.h>

static void odbc_diag(SQLSMALLINT type, SQLHANDLE h, const char *step, char *out, int outLen) {
	SQLCHAR state[6] = {0};
	SQLCHAR msg[512] = {0};
	SQLINTEGER native = 0;
	SQLSMALLINT n = 0;

	if (h != SQL_NULL_HANDLE &&
	    SQL_SUCCEEDED(SQLGetDiagRec(type, h, 1, state, &native, msg, sizeof(msg), &n))) {
		snprintf(out, outLen, "%s: %s: %s", step, (char *)state, (char *)msg);
		return;
	}
	snprintf(out, outLen, "%s failed", step);
}

// list_tables connects with conn_str and writes every TABLE name reported
// by SQLTables into out, one per line. Returns 0 on success, -1 on an ODBC
// error (message in out) and -2 when out is too small.
static int list_tables(const char *conn_str, char *out, int out_len) {
	SQLHENV env = SQL_NULL_HENV;
	SQLHDBC dbc = SQL_NULL_HDBC;
	SQLHSTMT stmt = SQL_NULL_HSTMT;
	SQLCHAR name[1024];
	SQLLEN ind = 0;
	SQLRETURN rc;
	int used = 0, status = 0, connected = 0;

	out[0] = '\0';

	rc = SQLAllocHandle(SQL_HANDLE_ENV, SQL_NULL_HANDLE, &env);
	if (!SQL_SUCCEEDED(rc)) {
		snprintf(out, out_len, "SQLAllocHandle(ENV) failed");
		return -1;
	}
	rc = SQLSetEnvAttr(env, SQL_ATTR_ODBC_VERSION, (SQLPOINTER)SQL_OV_ODBC3, 0);
	if (!SQL_SUCCEEDED(rc)) {
		odbc_diag(SQL_HANDLE_ENV, env, "SQLSetEnvAttr", out, out_len);
		status = -1;
		goto done;
	}
	rc = SQLAllocHandle(SQL_HANDLE_DBC, env, &dbc);
	if (!SQL_SUCCEEDED(rc)) {
		odbc_diag(SQL_HANDLE_ENV, env, "SQLAllocHandle(DBC)", out, out_len);
		status = -1;
		goto done;
	}
	rc = SQLDriverConnect(dbc, NULL, (SQLCHAR *)conn_str, SQL_NTS, NULL, 0, NULL, SQL_DRIVER_NOPROMPT);
	if (!SQL_SUCCEEDED(rc)) {
		odbc_diag(SQL_HANDLE_DBC, dbc, "SQLDriverConnect", out, out_len);
		status = -1;
		goto done;
	}
	connected = 1;

	rc = SQLAllocHandle(SQL_HANDLE_STMT, dbc, &stmt);
	if (!SQL_SUCCEEDED(rc)) {
		odbc_diag(SQL_HANDLE_DBC, dbc, "SQLAllocHandle(STMT)", out, out_len);
		status = -1;
		goto done;
	}
	rc = SQLTables(stmt, NULL, 0, NULL, 0, NULL, 0, (SQLCHAR *)"TABLE", SQL_NTS);
	if (!SQL_SUCCEEDED(rc)) {
		odbc_diag(SQL_HANDLE_STMT, stmt, "SQLTables", out, out_len);
		status = -1;
		goto done;
	}

	while ((rc = SQLFetch(stmt)) != SQL_NO_DATA) {
		int n;
		if (!SQL_SUCCEEDED(rc)) {
			odbc_diag(SQL_HANDLE_STMT, stmt, "SQLFetch", out, out_len);
			status = -1;
			goto done;
		}
		rc = SQLGetData(stmt, 3, SQL_C_CHAR, name, sizeof(name), &ind);
		if (!SQL_SUCCEEDED(rc)) {
			odbc_diag(SQL_HANDLE_STMT, stmt, "SQLGetData", out, out_len);
			status = -1;
			goto done;
		}
		if (ind == SQL_NULL_DATA) {
			continue;
		}
		n = (int)strlen((char *)name);
		if (used + n + 2 > out_len) {
			status = -2;
			goto done;
		}
		memcpy(out + used, name, n);
		used += n;
		out[used++] = '\n';
		out[used] = '\0';
	}

done:
	if (stmt != SQL_NULL_HSTMT) SQLFreeHandle(SQL_HANDLE_STMT, stmt);
	if (connected) SQLDisconnect(dbc);
	if (dbc != SQL_NULL_HDBC) SQLFreeHandle(SQL_HANDLE_DBC, dbc);
	SQLFreeHandle(SQL_HANDLE_ENV, env);
	return status;
}
*/
import "C"

import (
	"errors"
	"strings"
	"unsafe"
)

// sqlTables lists TABLE objects through the ODBC catalog on a short-lived
// connection of its own.
func sqlTables(connStr string) ([]string, error) {
	cs := C.CString(connStr)
	defer C.free(unsafe.Pointer(cs))

	for size := 64 << 10; size <= 16<<20; size *= 4 {
		buf := (*C.char)(C.malloc(C.size_t(size)))
		rc := C.list_tables(cs, buf, C.int(size))
		out := C.GoString(buf)
		C.free(unsafe.Pointer(buf))
		if rc == 0 && out == "" {
			return nil, nil
		}

		switch rc {
		case 0:
			return strings.Split(strings.TrimSuffix(out, "\n"), "\n"), nil
		case -1:
			return nil, errors.New(out)
		}
	}
	return nil, errors.New("SQLTables: table list exceeds 16MB")
}
