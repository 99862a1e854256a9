package pool

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/darkwire-sim/darkwire/internal/def"
)

// Archetype selects the objective template a generated mission follows.
type Archetype string

const (
	ArchetypeRepair   Archetype = "repair"
	ArchetypeBackup   Archetype = "backup"
	ArchetypeTransfer Archetype = "transfer"
)

// Archetypes lists every supported mission archetype.
var Archetypes = []Archetype{ArchetypeRepair, ArchetypeBackup, ArchetypeTransfer}

// GeneratorConfig holds the payout and timing knobs for procedural
// missions. Zero values are replaced by defaults.
type GeneratorConfig struct {
	// BasePayout is the per-objective payout before multipliers.
	BasePayout int
	// TimePerObjective sets the nominal game-time budget per objective;
	// the actual limit is jittered around the nominal total.
	TimePerObjective time.Duration
	// TimeBonusPerMinute pays (or charges) the difference between the
	// nominal and actual time limit, per minute.
	TimeBonusPerMinute int
	// ArcBonusPerPart raises payout for later parts of an arc.
	ArcBonusPerPart float64
}

// DefaultGeneratorConfig returns the tuning used by the live pool.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		BasePayout:         250,
		TimePerObjective:   20 * time.Minute,
		TimeBonusPerMinute: 10,
		ArcBonusPerPart:    0.25,
	}
}

func (c GeneratorConfig) withDefaults() GeneratorConfig {
	d := DefaultGeneratorConfig()
	if c.BasePayout == 0 {
		c.BasePayout = d.BasePayout
	}
	if c.TimePerObjective == 0 {
		c.TimePerObjective = d.TimePerObjective
	}
	if c.TimeBonusPerMinute == 0 {
		c.TimeBonusPerMinute = d.TimeBonusPerMinute
	}
	if c.ArcBonusPerPart == 0 {
		c.ArcBonusPerPart = d.ArcBonusPerPart
	}
	return c
}

// Generator synthesizes complete, self-contained mission definitions:
// a simulated network and file-system topology, an ordered objective
// list following one of the archetypes, a time limit derived from the
// objective count, and a payout derived from base-per-objective,
// client tier, arc position, and a time-bonus term.
//
// Every objective target refers to an entity present in the generated
// topology. Determinism is not a goal, but generated ids are unique
// for the lifetime of the pool.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// NewGenerator creates a generator. A nil rng gets a time-seeded one.
func NewGenerator(cfg GeneratorConfig, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{cfg: cfg.withDefaults(), rng: rng}
}

var (
	networkAdjectives = []string{"meridian", "cobalt", "onyx", "vantage", "aurora", "granite"}
	networkNouns      = []string{"exchange", "archive", "relay", "vault", "grid", "uplink"}
	machineNames      = []string{"db-primary", "mail-relay", "file-server", "auth-gateway", "backup-node"}
	fileStems         = []string{"ledger", "payroll", "manifest", "telemetry", "contracts", "credentials", "audit"}
	fileExts          = []string{"db", "dat", "log", "tar", "csv"}
)

// Generate synthesizes a single mission for the given client and tier.
// arcID and arcPart are zero-valued for standalone missions.
func (g *Generator) Generate(client string, tier Tier, arcID string, arcPart int) *def.Mission {
	archetype := Archetypes[g.rng.Intn(len(Archetypes))]
	return g.generate(archetype, client, tier, arcID, arcPart)
}

// GenerateArc synthesizes a chain of missions sharing one storyline.
// Later parts carry the arc-position payout bonus.
func (g *Generator) GenerateArc(client string, tier Tier, parts int) []*def.Mission {
	arcID := "arc-" + uuid.NewString()
	missions := make([]*def.Mission, parts)
	for i := range missions {
		missions[i] = g.Generate(client, tier, arcID, i+1)
	}
	return missions
}

func (g *Generator) generate(archetype Archetype, client string, tier Tier, arcID string, arcPart int) *def.Mission {
	net := g.topology(archetype)
	fs := &net.FileSystems[0]

	var objectives []def.Objective
	add := func(o def.Objective) {
		o.ID = fmt.Sprintf("obj-%d", len(objectives)+1)
		objectives = append(objectives, o)
	}

	machine := machineNames[g.rng.Intn(len(machineNames))]
	add(def.Objective{
		Type:        def.ObjectiveNetworkConnection,
		Description: "Connect to " + net.Name,
		Target:      net.ID,
	})
	add(def.Objective{
		Type:           def.ObjectiveNetworkScan,
		Description:    "Locate " + machine,
		Target:         net.ID,
		ExpectedResult: machine,
	})

	switch archetype {
	case ArchetypeRepair:
		add(def.Objective{
			Type:        def.ObjectiveFileSystemConnection,
			Description: "Mount the damaged store",
			Target:      fs.ID,
		})
		for _, name := range corruptedNames(fs) {
			add(def.Objective{
				Type:        def.ObjectiveFileOperation,
				Description: "Repair " + name,
				Operation:   "repair",
				Target:      name,
			})
		}

	case ArchetypeBackup:
		add(def.Objective{
			Type:        def.ObjectiveFileSystemConnection,
			Description: "Mount the source store",
			Target:      fs.ID,
		})
		for _, name := range cleanNames(fs) {
			add(def.Objective{
				Type:        def.ObjectiveFileOperation,
				Description: "Copy " + name + " offsite",
				Operation:   "copy",
				Target:      name,
			})
		}

	case ArchetypeTransfer:
		add(def.Objective{
			Type:        def.ObjectiveCredentialRegistration,
			Description: "Register access to " + net.Name,
			Target:      net.ID,
		})
		add(def.Objective{
			Type:        def.ObjectiveFileSystemConnection,
			Description: "Mount the source store",
			Target:      fs.ID,
		})
		name := cleanNames(fs)[0]
		add(def.Objective{
			Type:        def.ObjectiveFileOperation,
			Description: "Copy " + name + " to the drop",
			Operation:   "copy",
			Target:      name,
		})
		add(def.Objective{
			Type:        def.ObjectiveFileOperation,
			Description: "Delete the original " + name,
			Operation:   "delete",
			Target:      name,
		})
	}

	limit, bonus := g.timeLimit(len(objectives))
	m := &def.Mission{
		ID:         "gen-" + uuid.NewString(),
		Title:      g.title(archetype, net),
		Client:     client,
		Objectives: objectives,
		Networks:   []def.Network{net},
		TimeLimit:  limit,
		Payout:     g.payout(len(objectives), tier, arcPart, bonus),
		ArcID:      arcID,
		ArcPart:    arcPart,
	}
	def.Normalize(m)
	return m
}

// topology builds one network with one file system whose file mix fits
// the archetype: repair missions need corrupted files, the others need
// clean ones.
func (g *Generator) topology(archetype Archetype) def.Network {
	adjective := networkAdjectives[g.rng.Intn(len(networkAdjectives))]
	noun := networkNouns[g.rng.Intn(len(networkNouns))]
	name := adjective + "-" + noun

	corrupted := 0
	if archetype == ArchetypeRepair {
		corrupted = 1 + g.rng.Intn(3)
	}
	clean := 1 + g.rng.Intn(3)

	files := make([]def.File, 0, corrupted+clean)
	used := map[string]bool{}
	for len(files) < corrupted+clean {
		stem := fileStems[g.rng.Intn(len(fileStems))]
		ext := fileExts[g.rng.Intn(len(fileExts))]
		fname := stem + "." + ext
		if used[fname] {
			continue
		}
		used[fname] = true
		files = append(files, def.File{Name: fname, Corrupted: len(files) < corrupted})
	}

	return def.Network{
		ID:       "net-" + uuid.NewString(),
		Name:     name,
		IP:       fmt.Sprintf("10.%d.%d.%d", g.rng.Intn(250)+1, g.rng.Intn(250)+1, g.rng.Intn(250)+1),
		Username: "svc_" + adjective,
		Password: uuid.NewString()[:8],
		FileSystems: []def.FileSystem{{
			ID:    "fs-" + uuid.NewString(),
			IP:    fmt.Sprintf("10.%d.%d.%d", g.rng.Intn(250)+1, g.rng.Intn(250)+1, g.rng.Intn(250)+1),
			Files: files,
		}},
	}
}

// timeLimit jitters the nominal per-objective budget by up to ±25% and
// converts the squeeze (or slack) into the payout's time-bonus term.
// Tight deadlines pay extra; generous ones pay less.
func (g *Generator) timeLimit(objectives int) (time.Duration, int) {
	nominal := g.cfg.TimePerObjective * time.Duration(objectives)
	jitter := 0.75 + g.rng.Float64()*0.5
	limit := time.Duration(float64(nominal) * jitter)
	bonus := int((nominal - limit).Minutes()) * g.cfg.TimeBonusPerMinute
	return limit, bonus
}

func (g *Generator) payout(objectives int, tier Tier, arcPart int, timeBonus int) int {
	arcBonus := 1.0
	if arcPart > 1 {
		arcBonus += g.cfg.ArcBonusPerPart * float64(arcPart-1)
	}
	base := float64(g.cfg.BasePayout*objectives) * tier.PayoutMultiplier * arcBonus
	p := int(base) + timeBonus
	if p < g.cfg.BasePayout {
		p = g.cfg.BasePayout
	}
	return p
}

func (g *Generator) title(archetype Archetype, net def.Network) string {
	verb := map[Archetype]string{
		ArchetypeRepair:   "Restore",
		ArchetypeBackup:   "Preserve",
		ArchetypeTransfer: "Exfiltrate",
	}[archetype]
	return verb + " " + strings.ReplaceAll(net.Name, "-", " ")
}

// ExtensionObjectives derives one or two follow-up objectives from a
// mission's existing topology, for mid-mission extensions. When every
// file is already targeted a fresh corrupted file is added to the
// topology so the new objective still refers to a real entity.
func (g *Generator) ExtensionObjectives(m *def.Mission) []def.Objective {
	if len(m.Networks) == 0 || len(m.Networks[0].FileSystems) == 0 {
		return nil
	}
	fs := &m.Networks[0].FileSystems[0]

	targeted := map[string]bool{}
	for _, o := range m.Objectives {
		if o.Type == def.ObjectiveFileOperation {
			targeted[o.Target] = true
		}
	}

	var objs []def.Objective
	for _, f := range fs.Files {
		if targeted[f.Name] {
			continue
		}
		op := "copy"
		if f.Corrupted {
			op = "repair"
		}
		objs = append(objs, def.Objective{
			ID:          fmt.Sprintf("ext-%d", len(objs)+1),
			Type:        def.ObjectiveFileOperation,
			Description: strings.ToUpper(op[:1]) + op[1:] + " " + f.Name,
			Operation:   op,
			Target:      f.Name,
		})
		if len(objs) == 2 {
			return objs
		}
	}
	if len(objs) > 0 {
		return objs
	}

	fname := "shadow-" + uuid.NewString()[:8] + ".dat"
	fs.Files = append(fs.Files, def.File{Name: fname, Corrupted: true})
	return []def.Objective{{
		ID:          "ext-1",
		Type:        def.ObjectiveFileOperation,
		Description: "Repair " + fname,
		Operation:   "repair",
		Target:      fname,
	}}
}

func corruptedNames(fs *def.FileSystem) []string {
	var names []string
	for _, f := range fs.Files {
		if f.Corrupted {
			names = append(names, f.Name)
		}
	}
	return names
}

func cleanNames(fs *def.FileSystem) []string {
	var names []string
	for _, f := range fs.Files {
		if !f.Corrupted {
			names = append(names, f.Name)
		}
	}
	return names
}
