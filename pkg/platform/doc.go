/*
Package platform specializes the Extensible Node into a conversational surface.

A Platform declares a fixed local stage contract ($init, $request, ... $response) and,
when installed into a parent, registers propagation shims on the parent's stages.
Each shim runs the paired local stages only for turns whose identity token matches
the platform; the claim shim on the parent's platform.claim stage assigns that token
the first time the platform's claim predicate accepts a raw payload.

Two platforms claiming the same turn is reported as domain.ErrAmbiguousDispatch.
*/
package platform
