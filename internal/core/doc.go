// Package core provides the business logic for the contacts service.
//
// This package holds all domain operations independent of any transport.
// The HTTP server and the contactsctl CLI both drive it through [Service].
//
// # Architecture
//
//   - Field administration: [Service.CreateField], [Service.UpdateField] and
//     [Service.DeleteField] manage custom field definitions. Edits are
//     checked against every stored value before they commit.
//   - Contacts: CRUD over base contacts plus custom values, which are
//     validated by the fields package codec and merged over stored values.
//   - Import: [Service.DryRunImport] previews a CSV or XLSX upload,
//     [Service.ApplyImport] applies it in one transaction and keeps a CSV
//     report downloadable for a limited time.
//   - Export: [Service.ExportContacts] writes contacts in the import layout.
//
// # Resource Limits
//
// Imports hold the whole file in memory, so at most
// [Config.MaxConcurrentImports] run at once (see [ImportLimiter]). Reports
// expire after [Config.ReportTTL]; [Service.StartReportSweeper] evicts them
// in the background.
//
// # Error Handling
//
// Operations return typed errors from the fields, contact and importer
// packages, or the sentinels declared in service.go. [MapError] maps any of
// them to a [UserMessage] with a support code:
//
//   - VAL: validation failures
//   - FLD: field administration
//   - IMP, FILE: import requests and uploaded files
//   - DB: storage conflicts and connectivity
//   - RATE: import limiter exhaustion
package core
