package colloquy_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/colloquy"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/execution"
)

// ExampleHost demonstrates a two-turn dialogue driven by a controller.
func ExampleHost() {
	greet := func(ctx context.Context, d execution.Dialogue, _ any) (domain.Turn, error) {
		name, err := d.Exchange("What is your name?")
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("Hello, %v!", name), nil
	}

	host := colloquy.New()
	defer host.Shutdown()

	ctx := context.Background()
	s, step, err := host.Open(ctx, "example", greet, nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(step)

	step, err = host.Turn(ctx, s.ID(), "Ada", 0)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(step)

	// Output:
	// output(What is your name?)
	// last(Hello, Ada!)
}
