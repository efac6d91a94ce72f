// Package types holds the lowest-level shared contracts of staffline:
// inbound/outbound chat messages, employee categories with their code
// namespaces, workflow identifiers, and the pinned row schema.
//
// It has no dependencies on other staffline packages.
package types
