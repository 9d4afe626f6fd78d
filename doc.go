// Package blobx is an object-storage gateway that hides which provider
// (AWS S3, Google Cloud Storage, MinIO) holds a file.
//
// Every uploaded file gets a metadata record that maps an opaque UUID to its
// provider, bucket and key; reads and deletes go through that id. The
// pieces are:
//
//   - Backend: get/upload/delete against one provider (see adapters/).
//   - Registry: provider tag to Backend.
//   - SelectionPolicy: picks the provider for a new upload.
//   - MetadataStore: persists ObjectMetadata (see metadata/).
//   - Gateway: orders blob and metadata operations so that metadata never
//     points at an object that was not written.
//
// The package is designed to be imported from the module root:
//
//	import "github.com/gostratum/blobx"
//
// Use the Fx module (`blobx.Module`) together with adapter and metadata
// modules, or wire the constructors by hand:
//
//	reg, _ := blobx.NewRegistry(blobx.Registration{Provider: blobx.ProviderAWSS3, Backend: s3Backend})
//	policy, _ := blobx.NewRandomPolicy(reg.Providers(), nil)
//	gw, _ := blobx.NewGateway(reg, policy, memstore.New())
package blobx
