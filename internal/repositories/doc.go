// Package repositories implements SQLite persistence for installation identity, credentials, and run history.
//
// Key Implementations:
//   - [CredentialRepository] : Installation id plus the last-known OAuth credential
//   - [EventRepository] : Append-only usage events, one per run start
//   - [RunRepository] : Run outcomes, upserted at start and again at finish
//
// All timestamps are written in UTC so that lexical ordering of the stored values matches time ordering.
package repositories
