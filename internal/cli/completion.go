package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// revisionSuggestions are offered for --revision. Any branch, tag or commit
// of the repository is accepted.
var revisionSuggestions = []string{
	"nixos-unstable\tNixOS unstable channel",
	"nixpkgs-unstable\tnixpkgs unstable channel",
	"nixos-25.05\tNixOS 25.05 release branch",
	"nixos-24.11\tNixOS 24.11 release branch",
	"master\tdevelopment branch",
}

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for nixpkgs-vault.

Besides subcommands (serve, cache) the scripts complete nixpkgs channels for
--revision, directories for --outdir and JSON files for --input.

Bash:
  $ source <(nixpkgs-vault completion bash)

Zsh:
  $ nixpkgs-vault completion zsh > "${fpath[1]}/_nixpkgs-vault"

Fish:
  $ nixpkgs-vault completion fish > ~/.config/fish/completions/nixpkgs-vault.fish

PowerShell:
  PS> nixpkgs-vault completion powershell | Out-String | Invoke-Expression

On NixOS, with programs.bash.completion.enable set, write the bash script
to ~/.local/share/bash-completion/completions/nixpkgs-vault instead.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			root := cmd.Root()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(out, true)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}

// registerFlagCompletions attaches value completions to the flags of the
// generate (root) and serve commands.
func registerFlagCompletions(root *cobra.Command) {
	dirs := func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return nil, cobra.ShellCompDirectiveFilterDirs
	}
	jsonFiles := func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"json"}, cobra.ShellCompDirectiveFilterFileExt
	}
	tomlFiles := func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"toml"}, cobra.ShellCompDirectiveFilterFileExt
	}
	revisions := func(_ *cobra.Command, _ []string, prefix string) ([]string, cobra.ShellCompDirective) {
		var out []string
		for _, s := range revisionSuggestions {
			if strings.HasPrefix(s, prefix) {
				out = append(out, s)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	}

	_ = root.RegisterFlagCompletionFunc("outdir", dirs)
	_ = root.RegisterFlagCompletionFunc("input", jsonFiles)
	_ = root.RegisterFlagCompletionFunc("config", tomlFiles)
	_ = root.RegisterFlagCompletionFunc("revision", revisions)
	if serve, _, err := root.Find([]string{"serve"}); err == nil && serve != root {
		_ = serve.RegisterFlagCompletionFunc("outdir", dirs)
	}
}
