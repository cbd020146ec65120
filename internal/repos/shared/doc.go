// Package shared holds the reporting sink used by the checkouts commands.
package shared
