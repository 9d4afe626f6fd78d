package blobx_test

import (
	"context"
	"fmt"
	"strings"

	"github.com/gostratum/blobx"
	"github.com/gostratum/blobx/internal/testutil"
	"github.com/gostratum/blobx/metadata/memstore"
)

// Example wires a gateway by hand over in-memory backends and round-trips
// one object. Applications normally get the gateway from blobx.Module().
func Example() {
	aws := testutil.NewMemoryBackend(blobx.ProviderAWSS3)
	gcp := testutil.NewMemoryBackend(blobx.ProviderGCP)

	reg, err := blobx.NewRegistry(
		blobx.Registration{Provider: blobx.ProviderAWSS3, Backend: aws},
		blobx.Registration{Provider: blobx.ProviderGCP, Backend: gcp},
	)
	if err != nil {
		panic(err)
	}

	policy, err := blobx.NewFixedPolicy(reg.Providers(), blobx.ProviderAWSS3)
	if err != nil {
		panic(err)
	}

	gw, err := blobx.NewGateway(reg, policy, memstore.New())
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	id, err := gw.UploadObject(ctx, "bucket-a", "doc.txt", strings.NewReader("hello"), "text/plain")
	if err != nil {
		panic(err)
	}

	obj, err := gw.GetObject(ctx, id)
	if err != nil {
		panic(err)
	}
	data, _ := obj.Bytes()

	meta, _ := gw.GetObjectMetadata(ctx, id)
	fmt.Println(meta.Provider, meta.Bucket, meta.Key)
	fmt.Println(string(data), obj.ContentType)

	// Output:
	// AWS_S3 bucket-a doc.txt
	// hello text/plain
}

func ExampleParseProvider() {
	p, err := blobx.ParseProvider("GCP")
	fmt.Println(p, err)

	_, err = blobx.ParseProvider("gcp")
	fmt.Println(err != nil)

	// Output:
	// GCP <nil>
	// true
}
