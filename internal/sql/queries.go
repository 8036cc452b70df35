// Package sql embeds the schema migrations and the queries run by the
// catalog and execution store.
package sql

import (
	"embed"
)

//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/insert_record.sql
var InsertRecord string

//go:embed queries/upsert_record.sql
var UpsertRecord string

//go:embed queries/copy_record.sql
var CopyRecord string

//go:embed queries/copy_attributes.sql
var CopyAttributes string

//go:embed queries/delete_attributes.sql
var DeleteAttributes string

//go:embed queries/lookup_record.sql
var LookupRecord string

//go:embed queries/delete_records_by_execution.sql
var DeleteRecordsByExecution string

//go:embed queries/list_attributes.sql
var ListAttributes string

//go:embed queries/insert_execution.sql
var InsertExecution string

//go:embed queries/update_execution.sql
var UpdateExecution string

//go:embed queries/load_execution.sql
var LoadExecution string

//go:embed queries/list_executions.sql
var ListExecutions string
