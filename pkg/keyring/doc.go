// Package keyring defines the contract between a host application's
// key-ring manager and the remote stores that persist its key material.
//
// A key ring is a set of XML key documents (signing/encryption keys plus
// activation metadata) produced by the host's data-protection stack. keyops
// never interprets that XML beyond the root element's "id" attribute; it
// moves documents in and out of secret stores verbatim.
//
// The Repository interface is the inbound contract consumed by the host.
// Concrete repositories are built from a store definition in keyops.yaml
// by the keyops CLI; code holding a Repository stays backend-agnostic:
//
//	func loadRing(ctx context.Context, repo keyring.Repository) error {
//	    elements, err := repo.GetAllElements(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    for _, el := range elements {
//	        // merge into the in-memory key ring
//	    }
//	    return nil
//	}
//
// Both repository operations are synchronous: the caller blocks until the
// remote calls complete or a transport error surfaces. Repositories never
// retry internally and never return partial results on transport failure.
package keyring
