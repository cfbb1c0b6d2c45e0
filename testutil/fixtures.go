package testutil

import (
	"reflect"
	"testing"

	"github.com/broady/dynproxy"
	"github.com/broady/dynproxy/typesys"
)

// FixturePackage is the package path of the fixture types.
const FixturePackage = "example.com/fixtures"

// Fixtures is a small universe of registered types covering the common proxy
// shapes.
type Fixtures struct {
	// Calculator is an interface: Add(x, y int) int.
	Calculator *typesys.Type

	// Disposable is an interface: Dispose().
	Disposable *typesys.Type

	// Counter is an interface with a Count int property and a Changed
	// func() event.
	Counter *typesys.Type

	// Greeter is a class whose virtual Greet returns the greeting it was
	// constructed with, "hi" by default.
	Greeter *typesys.Type

	// Animal is an abstract class. Its abstract Speak is called virtually
	// by Describe, which returns "I say " and the sound.
	Animal *typesys.Type

	// Cat extends Animal; Speak returns "meow".
	Cat *typesys.Type
}

// NewFixtures registers a fresh set of fixture types in their own universe.
func NewFixtures(t testing.TB) *Fixtures {
	t.Helper()
	f := &Fixtures{}

	f.Calculator = typesys.NewInterface(FixturePackage, "Calculator").
		Method("Add", typesys.Params(typesys.P("x", "int"), typesys.P("y", "int")), typesys.Returns("int")).
		Build()
	f.Disposable = typesys.NewInterface(FixturePackage, "Disposable").
		Method("Dispose").
		Build()
	f.Counter = typesys.NewInterface(FixturePackage, "Counter").
		Property("Count", "int").
		Event("Changed", "func()").
		Build()

	f.Greeter = typesys.NewClass(FixturePackage, "Greeter").
		Constructor(func([]any) (any, error) { return "hi", nil }).
		Constructor(func(args []any) (any, error) { return args[0], nil },
			typesys.Param{Name: "greeting", Type: "string", RType: reflect.TypeFor[string]()}).
		Method("Greet", typesys.Returns("string"), typesys.Body(func(recv typesys.Receiver, _ []any) (any, error) {
			return recv.State(), nil
		})).
		Build()

	animal := typesys.NewClass(FixturePackage, "Animal").Abstract().
		Method("Speak", typesys.Returns("string"), typesys.Abstract()).
		Build()
	animal.Members = append(animal.Members, &typesys.Member{
		Name:    "Describe",
		Kind:    typesys.MemberMethod,
		Results: []typesys.Param{typesys.R("string")},
		Virtual: true,
		Impl: func(recv typesys.Receiver, _ []any) (any, error) {
			sound, err := recv.Self().(*dynproxy.Object).InvokeContext(recv.Context(), animal.Method("Speak").ID())
			if err != nil {
				return nil, err
			}
			return "I say " + sound.(string), nil
		},
	})
	f.Animal = animal
	f.Cat = typesys.NewClass(FixturePackage, "Cat").Extends(animal).
		Method("Speak", typesys.Returns("string"), typesys.Override(), typesys.Body(func(typesys.Receiver, []any) (any, error) {
			return "meow", nil
		})).
		Build()

	if err := typesys.NewUniverse().Register(f.Calculator, f.Disposable, f.Counter, f.Greeter, f.Animal, f.Cat); err != nil {
		t.Fatalf("registering fixtures: %v", err)
	}
	return f
}

// Adder is a target implementing Calculator.
type Adder struct{}

// Add returns x + y.
func (Adder) Add(x, y int) int { return x + y }
