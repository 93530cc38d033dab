/*
Package session tracks running dialogue executions by identifier.

A Session binds an identifier to one execution and to caller-supplied data. The
Registry owns every live Session; each Session keeps a non-owning reference back to
its Registry and removes itself as soon as its execution is done.

The Registry sweeps on a fixed period and stops sessions that have not been accessed
for longer than the idle timeout. With a ports.Leaser configured, identifiers also stay
unique across replicas: a lease is taken on Add, refreshed on every sweep, and
released when the session stops.
*/
package session
