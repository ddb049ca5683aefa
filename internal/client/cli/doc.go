// Package cli implements the cutout command-line client: a cobra command
// tree (register, login, logout, me, remove, shell) over the account and
// removal services, plus a small interactive shell running the same
// commands.
package cli
