package mongo

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/stubbl/identity/internal/identity/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	registryOnce sync.Once
	registry     *bson.Registry
)

// Configure returns the process-wide BSON registry used by every collection
// this package opens. It is built once; later calls return the same registry.
//
// Element names are camelCase via the document struct tags. Client enums are
// written as their names and read back from either a name or the numeric
// value older documents carry. Unknown elements are ignored on decode.
func Configure() *bson.Registry {
	registryOnce.Do(func() {
		reg := bson.NewRegistry()
		registerEnum(reg, domain.ParseAccessTokenType)
		registerEnum(reg, domain.ParseTokenExpiration)
		registerEnum(reg, domain.ParseTokenUsage)
		registry = reg
	})
	return registry
}

type namedEnum interface {
	~int
	fmt.Stringer
}

func registerEnum[T namedEnum](reg *bson.Registry, parse func(string) (T, error)) {
	t := reflect.TypeFor[T]()

	reg.RegisterTypeEncoder(t, bson.ValueEncoderFunc(
		func(_ bson.EncodeContext, vw bson.ValueWriter, v reflect.Value) error {
			return vw.WriteString(T(v.Int()).String())
		},
	))

	reg.RegisterTypeDecoder(t, bson.ValueDecoderFunc(
		func(_ bson.DecodeContext, vr bson.ValueReader, v reflect.Value) error {
			switch vr.Type() {
			case bson.TypeString:
				s, err := vr.ReadString()
				if err != nil {
					return err
				}
				parsed, err := parse(s)
				if err != nil {
					return err
				}
				v.SetInt(int64(parsed))
			case bson.TypeInt32:
				n, err := vr.ReadInt32()
				if err != nil {
					return err
				}
				v.SetInt(int64(n))
			case bson.TypeInt64:
				n, err := vr.ReadInt64()
				if err != nil {
					return err
				}
				v.SetInt(n)
			case bson.TypeNull:
				return vr.ReadNull()
			default:
				return fmt.Errorf("mongo: cannot decode BSON %s into %s", vr.Type(), t)
			}
			return nil
		},
	))
}
