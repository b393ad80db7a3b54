package xreactor_test

import (
	"context"
	"fmt"
	"time"

	"github.com/omeyang/todokit/pkg/async/xpromise"
	"github.com/omeyang/todokit/pkg/async/xreactor"
)

func ExampleReactor_All() {
	r, err := xreactor.New()
	if err != nil {
		panic(err)
	}
	r.Start()
	defer func() { _ = r.Stop(context.Background()) }()

	primary := xreactor.Blocking(r, func(context.Context) (bool, error) { return true, nil })
	lookup := xreactor.Blocking(r, func(context.Context) (bool, error) { return true, nil })

	values, err := r.All(15*time.Second, primary, lookup).Await(context.Background())
	fmt.Println(values, err)
	// Output:
	// [true true] <nil>
}

func ExampleReactor_Any() {
	r, err := xreactor.New()
	if err != nil {
		panic(err)
	}
	defer func() { _ = r.Stop(context.Background()) }()

	slow, _ := xpromise.Pend[string]()
	v, err := r.Any(time.Second, slow, xpromise.ResolvedWith("queued")).Await(context.Background())
	fmt.Println(v, err)
	// Output:
	// queued <nil>
}
