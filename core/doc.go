// Package core contains the credential vault contracts, entities, and OAuth
// orchestration. Storage, encryption, identity, and provider adapters depend on
// this package; core must not depend on any of them.
package core
