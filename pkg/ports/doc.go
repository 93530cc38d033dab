/*
Package ports defines the driven ports (interfaces) for Colloquy.

These interfaces decouple the session registry from external implementations, allowing
it to run in-process or to coordinate identifiers across replicas.

# Key Interfaces

  - Leaser: Hands out exclusive, expiring leases on session identifiers (memory or Redis).
  - Lease: The external handle attached to a Session and released when it stops.
*/
package ports
