package adapters

// RegisterBuiltins binds the modules shipped with the router.
func RegisterBuiltins(r *Registry) error {
	builtins := []struct {
		name    string
		factory Factory
	}{
		{ExampleBotModule, NewExampleBot},
		{ExecModule, NewExecAdapter},
		{OpenAIModule, NewOpenAIAdapter},
		{AnthropicModule, NewAnthropicAdapter},
		{GeminiModule, NewGeminiAdapter},
	}

	for _, b := range builtins {
		if err := r.Register(b.name, b.factory); err != nil {
			return err
		}
	}
	return nil
}
