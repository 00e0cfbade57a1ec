// Package interactive provides the interactive command-line interface
// for the railgate simulator.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/railgate-project/railgate-go/pkg/bus/memtree"
	"github.com/railgate-project/railgate-go/pkg/firmware"
	"github.com/railgate-project/railgate-go/pkg/firmware/sim"
	"github.com/railgate-project/railgate-go/pkg/power"
)

// Console handles interactive mode for railgate-sim.
type Console struct {
	ctrl *power.Controller
	fw   *sim.Controller
	tree *memtree.Tree
	rl   *readline.Instance
}

// New creates a new interactive console.
func New(ctrl *power.Controller, fw *sim.Controller, tree *memtree.Tree) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "railgate> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{
		ctrl: ctrl,
		fw:   fw,
		tree: tree,
		rl:   rl,
	}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
func (c *Console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "status", "s":
			c.cmdStatus()

		case "suspend":
			c.cmdSuspend()

		case "resume":
			c.cmdResume()

		case "get":
			c.cmdGet()

		case "put":
			c.cmdPut()

		case "forbid":
			c.cmdForbid()

		case "allow":
			c.cmdAllow()

		case "sleep":
			c.cmdSleep()

		case "wakeup":
			c.cmdWakeup()

		case "wake":
			c.cmdWake()

		case "fault":
			c.cmdFault(args)

		case "clear":
			c.cmdClear(args)

		case "refuse":
			c.cmdRefuse(args)

		case "powerloss":
			c.cmdPowerLoss()

		case "calls":
			c.cmdCalls()

		case "tree", "t":
			c.cmdTree()

		case "plug":
			c.cmdPlug(args)

		case "unplug":
			c.cmdUnplug(args)

		case "drain":
			c.cmdDrain()

		case "policy":
			c.cmdPolicy(args)

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Railgate Simulator Commands:
  Power sequencing:
    status             - Show controller, firmware switch and device states
    suspend            - Run a runtime suspend now
    resume             - Run a runtime resume now
    get                - Take a usage reference (blocks autosuspend)
    put                - Drop a usage reference
    forbid             - Administratively disable power management
    allow              - Re-enable power management after forbid
    sleep              - Prepare for system sleep
    wakeup             - Complete system wakeup (resets the switch latch)

  Firmware simulation:
    wake               - Fire the wake event in firmware
    fault <op>         - Inject a failure (set_power, get_power, arm, disarm)
    clear <op>         - Clear an injected failure
    refuse on|off      - Make the chip refuse power-down confirmation
    powerloss          - Simulate an unclean power loss (sets the switch latch)
    calls              - Show the firmware call log

  Device tree:
    tree               - Show the device tree with power states
    plug <parent> <id> - Hot-plug a device under a parent
    unplug <id>        - Unplug a device
    drain              - Resume devices with pending resume requests
    policy on|off      - Allow or disallow deep power-off

  General:
    help               - Show this help
    quit               - Exit the simulator`)
}

// cmdStatus shows controller, firmware and device state.
func (c *Console) cmdStatus() {
	fmt.Fprintln(c.rl.Stdout(), "\nController Status")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	fmt.Fprintf(c.rl.Stdout(), "  Controller ID:  %s\n", c.ctrl.ID())
	fmt.Fprintf(c.rl.Stdout(), "  Power state:    %s\n", c.ctrl.State())
	fmt.Fprintf(c.rl.Stdout(), "  Usage count:    %d\n", c.ctrl.Usage())
	fmt.Fprintf(c.rl.Stdout(), "  Wake drops:     %d\n", c.ctrl.WakeDrops())

	fmt.Fprintln(c.rl.Stdout(), "\nFirmware switch")
	fmt.Fprintf(c.rl.Stdout(), "  Powered:  %v\n", c.fw.Powered())
	fmt.Fprintf(c.rl.Stdout(), "  Armed:    %v\n", c.fw.Armed())
	fmt.Fprintf(c.rl.Stdout(), "  Latched:  %v\n", c.fw.Latched())

	fmt.Fprintf(c.rl.Stdout(), "\nDeep power-off allowed: %v\n", c.tree.DeepOffAllowed())
	c.cmdTree()
}

// cmdSuspend runs a synchronous runtime suspend.
func (c *Console) cmdSuspend() {
	err := c.ctrl.RuntimeSuspend()
	switch {
	case err == nil:
		fmt.Fprintf(c.rl.Stdout(), "Suspended (state: %s)\n", c.ctrl.State())
	case errors.Is(err, power.ErrRetry):
		fmt.Fprintln(c.rl.Stdout(), "Suspend refused (busy, policy, or rolled back); see the event trace")
	default:
		fmt.Fprintf(c.rl.Stdout(), "Suspend failed: %v\n", err)
	}
}

// cmdResume runs a synchronous runtime resume.
func (c *Console) cmdResume() {
	if err := c.ctrl.RuntimeResume(); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Resume failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Resumed (state: %s)\n", c.ctrl.State())
}

// cmdGet takes a usage reference.
func (c *Console) cmdGet() {
	c.ctrl.Get()
	fmt.Fprintf(c.rl.Stdout(), "Usage count: %d\n", c.ctrl.Usage())
}

// cmdPut drops a usage reference.
func (c *Console) cmdPut() {
	c.ctrl.Put()
	fmt.Fprintf(c.rl.Stdout(), "Usage count: %d\n", c.ctrl.Usage())
}

// cmdForbid disables power management.
func (c *Console) cmdForbid() {
	c.ctrl.Forbid()
	fmt.Fprintln(c.rl.Stdout(), "Power management forbidden (controller held active)")
}

// cmdAllow re-enables power management.
func (c *Console) cmdAllow() {
	c.ctrl.Allow()
	fmt.Fprintf(c.rl.Stdout(), "Power management allowed (usage count: %d)\n", c.ctrl.Usage())
}

// cmdSleep prepares the controller for system sleep.
func (c *Console) cmdSleep() {
	if err := c.ctrl.Prepare(); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Sleep preparation failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Prepared for system sleep")
}

// cmdWakeup completes system wakeup.
func (c *Console) cmdWakeup() {
	if err := c.ctrl.Complete(); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Wakeup completion failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "System wakeup complete")
}

// cmdWake fires the firmware wake event.
func (c *Console) cmdWake() {
	if c.fw.FireWake() {
		fmt.Fprintln(c.rl.Stdout(), "Wake event fired")
	} else {
		fmt.Fprintln(c.rl.Stdout(), "Wake event not delivered (not armed)")
	}
}

// cmdFault injects a firmware failure.
func (c *Console) cmdFault(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: fault <op>")
		fmt.Fprintln(c.rl.Stdout(), "  Operations: set_power, get_power, arm, disarm")
		return
	}
	op, err := ParseOp(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	c.fw.SetFault(op, fmt.Errorf("injected %s fault", op))
	fmt.Fprintf(c.rl.Stdout(), "Fault injected for %s\n", op)
}

// cmdClear clears an injected firmware failure.
func (c *Console) cmdClear(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: clear <op>")
		fmt.Fprintln(c.rl.Stdout(), "  Operations: set_power, get_power, arm, disarm")
		return
	}
	op, err := ParseOp(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	c.fw.ClearFault(op)
	fmt.Fprintf(c.rl.Stdout(), "Fault cleared for %s\n", op)
}

// cmdRefuse toggles power-down confirmation refusal.
func (c *Console) cmdRefuse(args []string) {
	if len(args) < 1 || (args[0] != "on" && args[0] != "off") {
		fmt.Fprintln(c.rl.Stdout(), "Usage: refuse on|off")
		return
	}
	on := args[0] == "on"
	c.fw.RefusePowerDown(on)
	if on {
		fmt.Fprintln(c.rl.Stdout(), "Chip will refuse power-down confirmation")
	} else {
		fmt.Fprintln(c.rl.Stdout(), "Chip will confirm power-down normally")
	}
}

// cmdPowerLoss simulates an unclean power loss.
func (c *Console) cmdPowerLoss() {
	c.fw.UncleanPowerLoss()
	fmt.Fprintln(c.rl.Stdout(), "Unclean power loss simulated (switch latch set)")
}

// cmdCalls prints the firmware call log.
func (c *Console) cmdCalls() {
	calls := c.fw.Calls()
	if len(calls) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No firmware calls recorded")
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "\nFirmware calls (%d):\n", len(calls))
	for i, call := range calls {
		switch call.Op {
		case firmware.OpSetPower:
			fmt.Fprintf(c.rl.Stdout(), "  #%-3d %s %s arg=%d\n", i+1, call.Op, call.Method, call.Arg)
		case firmware.OpGetPower:
			fmt.Fprintf(c.rl.Stdout(), "  #%-3d %s %s\n", i+1, call.Op, call.Method)
		default:
			fmt.Fprintf(c.rl.Stdout(), "  #%-3d %s\n", i+1, call.Op)
		}
	}
}

// cmdTree prints the device tree with power states.
func (c *Console) cmdTree() {
	fmt.Fprintln(c.rl.Stdout(), "\nDevices")
	fixture := c.tree.Fixture()
	c.printNode(fixture.Root, "  ")
}

// printNode prints one fixture node and its subtree.
func (c *Console) printNode(f memtree.NodeFixture, indent string) {
	node, ok := c.tree.Device(f.ID)
	if !ok {
		return
	}

	status := node.PowerState().String()
	if node.ResumePending() {
		status += " (resume pending)"
	}
	fmt.Fprintf(c.rl.Stdout(), "%s%s  %s\n", indent, f.ID, status)

	for _, child := range f.Children {
		c.printNode(child, indent+"  ")
	}
}

// cmdPlug hot-plugs a device.
func (c *Console) cmdPlug(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: plug <parent> <id>")
		fmt.Fprintln(c.rl.Stdout(), "  Example: plug controller port-a")
		return
	}
	if _, err := c.tree.Add(args[0], args[1]); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Plug failed: %v\n", err)
		return
	}
	// Plug activity defers the next autosuspend, as a hot-plug interrupt
	// would on real hardware.
	c.ctrl.MarkBusy()
	fmt.Fprintf(c.rl.Stdout(), "Plugged %s under %s\n", args[1], args[0])
}

// cmdUnplug removes a device.
func (c *Console) cmdUnplug(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: unplug <id>")
		return
	}
	if err := c.tree.Remove(args[0]); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Unplug failed: %v\n", err)
		return
	}
	c.ctrl.MarkBusy()
	fmt.Fprintf(c.rl.Stdout(), "Unplugged %s\n", args[0])
}

// cmdDrain resumes devices with pending resume requests.
func (c *Console) cmdDrain() {
	n := c.tree.DrainResumes()
	fmt.Fprintf(c.rl.Stdout(), "Resumed %d device(s)\n", n)
}

// cmdPolicy sets the deep power-off policy.
func (c *Console) cmdPolicy(args []string) {
	if len(args) < 1 || (args[0] != "on" && args[0] != "off") {
		fmt.Fprintln(c.rl.Stdout(), "Usage: policy on|off")
		return
	}
	on := args[0] == "on"
	c.tree.SetDeepOffAllowed(on)
	if on {
		fmt.Fprintln(c.rl.Stdout(), "Deep power-off allowed")
	} else {
		fmt.Fprintln(c.rl.Stdout(), "Deep power-off disallowed (suspend will be refused)")
	}
}

// ParseOp parses a firmware operation name from console input.
func ParseOp(s string) (firmware.Op, error) {
	switch strings.ToLower(s) {
	case "set_power", "set":
		return firmware.OpSetPower, nil
	case "get_power", "get":
		return firmware.OpGetPower, nil
	case "arm", "arm_wake":
		return firmware.OpArmWake, nil
	case "disarm", "disarm_wake":
		return firmware.OpDisarmWake, nil
	default:
		return 0, fmt.Errorf("unknown operation: %s (must be set_power, get_power, arm, or disarm)", s)
	}
}
