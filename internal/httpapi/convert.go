package httpapi

import (
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/types"
)

// Reader firmware that speaks protobuf sends the tag as a bare
// google.protobuf.StringValue and expects the response token back in the
// same wrapper.

func scanTagFromProto(p *wrapperspb.StringValue) string {
	return p.GetValue()
}

func scanResponseToProto(out types.Outcome) *wrapperspb.StringValue {
	return wrapperspb.String(out.Response)
}
