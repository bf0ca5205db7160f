// Package envsubst expands $NAME and ${NAME} references from .env files and the process environment.
package envsubst
