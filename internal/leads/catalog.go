package leads

import (
	"fmt"
	"strings"
)

const leadsPerBucket = 10

type personaArchetype struct {
	kind  string
	trait string
}

var personas = []personaArchetype{
	{"The High-Status Alpha", "Dominant, wants to feel in control. If you sound submissive, they lose respect. If you challenge them too early, they hang up."},
	{"The 'I'm Fine' Avoider", "Uses 'everything is great' as a defensive wall. High reactance to being told they have a problem."},
	{"The Analytical Perfectionist", "Needs data, hates 'fluff'. Will catch you in a lie or exaggeration instantly."},
	{"The Burned Visionary", "Had a big dream, got screwed by a vendor, now hyper-vigilant and cynical."},
	{"The Overwhelmed Firefighter", "Literally has no time. If you don't earn 30 seconds in the first 3, you're dead."},
	{"The Passive-Aggressive Agree-er", "Says 'yes' and 'that makes sense' just to get you off the phone. Hardest to pin down."},
	{"The Status-Seeking Socialite", "Wants to know who else is using it. Cares about prestige and 'being in the know'."},
	{"The Risk-Averse Bureaucrat", "Terrified of making a mistake. Needs social proof and 'safety' more than 'results'."},
	{"The Direct Blunt", "No small talk. 'What do you want?' If you stutter, they hang up."},
	{"The Friendly Talker", "Wastes time on rapport. Uses friendliness to avoid answering hard questions."},
}

var firstNames = []string{
	"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael", "Linda", "William", "Elizabeth",
	"David", "Barbara", "Richard", "Susan", "Joseph", "Jessica", "Thomas", "Sarah", "Charles", "Karen",
	"Christopher", "Nancy", "Daniel", "Lisa", "Matthew", "Betty", "Anthony", "Margaret", "Mark", "Sandra",
	"Donald", "Ashley", "Steven", "Kimberly", "Paul", "Alice", "Andrew", "Donna", "Joshua", "Emily",
	"Kevin", "Michelle", "Brian", "Laura", "George", "Sarah", "Edward", "Kim", "Ronald", "Deborah",
}

var lastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez",
	"Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin",
	"Lee", "Perez", "Thompson", "White", "Harris", "Sanchez", "Clark", "Ramirez", "Lewis", "Robinson",
	"Walker", "Young", "Hall", "Allen", "King", "Wright", "Scott", "Torres", "Nguyen", "Hill",
	"Adams", "Campbell", "Stewart", "Morris", "Rogers", "Reed", "Cook", "Morgan", "Bell", "Murphy",
}

var painPoints = map[Industry]map[Difficulty][]string{
	IndustrySolar: {
		DifficultyEasy: {
			"Utility rates just hiked by 15% and they are looking for options.",
			"Neighbor recently installed solar and they are curious about the $0 bill.",
			"Home feels drafty and AC runs constantly, they want to save money.",
		},
		DifficultyMedium: {
			"Worried about grid reliability after a recent outage but hates door knockers.",
			"Interested in going green but suspicious of high upfront costs and loans.",
			"Inherited an older home with inefficient appliances and high bills.",
		},
		DifficultyHard: {
			"A previous solar company promised savings but left them with a broken system.",
			"Thinks solar is a 'government scam' and doesn't trust anyone in the industry.",
			"In a legal battle with their utility company over net metering rights.",
		},
	},
	IndustryCyber: {
		DifficultyEasy: {
			"A minor phishing scare last week made them realize they need better training.",
			"Currently using a legacy firewall and knows they are out of date.",
			"Executive leadership is asking for a basic security review for insurance.",
		},
		DifficultyMedium: {
			"Worried about customer data in the cloud but thinks their current IT is 'fine'.",
			"Onboarding remote employees and struggling with basic access protocols.",
			"A competitor just got hit with a virus and they are feeling a bit nervous.",
		},
		DifficultyHard: {
			"They are currently under a ransomware attack and are extremely hostile and panicked.",
			"An internal audit just flagged 'catastrophic' vulnerabilities they can't fix.",
			"Burned by a previous vendor who failed to prevent a massive data breach.",
		},
	},
	IndustryInsurance: {
		DifficultyEasy: {
			"Approaching 65 and feeling overwhelmed by the mail, looking for guidance.",
			"Currently paying for a plan that doesn't cover their specific heart medication.",
			"Just wants to make sure they aren't overpaying compared to their friends.",
		},
		DifficultyMedium: {
			"Recently had a claim denied for a technicality and feels slightly cheated.",
			"Policy doesn't include dental or vision, which are becoming high priorities.",
			"Suspicious that their agent of 10 years is no longer looking out for them.",
		},
		DifficultyHard: {
			"Their spouse just passed away and they are being harassed by aggressive agents.",
			"Thinks all insurance is a 'scam' after losing a massive payout on a technicality.",
			"Living on a fixed income so tight that even a $10 increase feels like a threat.",
		},
	},
	IndustryMarketing: {
		DifficultyEasy: {
			"Website traffic is steady but phone isn't ringing, they know they need a change.",
			"Has a huge email list but hasn't sent a single campaign in over a year.",
			"Looking for a way to stop relying purely on word-of-mouth referrals.",
		},
		DifficultyMedium: {
			"Main competitor just started running aggressive, targeted social media ads.",
			"Spent $5,000 on a new website that looks pretty but generates zero leads.",
			"Local SEO rankings dropped from page 1 to page 4 and they are annoyed.",
		},
		DifficultyHard: {
			"Their previous agency 'ghosted' them after stealing $10,000 in ad spend.",
			"Currently bleeding money on Google Ads with zero ROI and hates marketers.",
			"Business is failing due to lack of leads and they are extremely defensive.",
		},
	},
	IndustryMedLogist: {
		DifficultyEasy: {
			"Current courier is often 30 mins late and they want something more reliable.",
			"Patient satisfaction scores are slightly dropping due to turnaround times.",
			"Looking for a way to digitize their specimen tracking instead of logbooks.",
		},
		DifficultyMedium: {
			"Costs for 'Stat' pickups increased by 40% and it's eating their budget.",
			"Specimens were exposed to heat last month and they need a climate solution.",
			"Current provider lacks GPS tracking and it's causing anxiety in the lab.",
		},
		DifficultyHard: {
			"Lost two critical specimens last month due to negligence, causing a lawsuit.",
			"Current courier service failed a site inspection and they are in crisis mode.",
			"Lab manager hates 'tech startups' and only trusts their local courier friend.",
		},
	},
	IndustryCommercial: {
		DifficultyEasy: {
			"Energy bills are slightly higher than usual and they want an inspection.",
			"Current service tech only shows up when something breaks; wants a plan.",
			"The building manager is tired of managing 5 different vendors for 5 units.",
		},
		DifficultyMedium: {
			"Tenants in the North wing are complaining about humidity and low airflow.",
			"Rooftop units are 15 years old and they want to avoid a massive replacement.",
			"Units are leaking refrigerant and they are worried about compliance fines.",
		},
		DifficultyHard: {
			"Rooftop unit failed on the hottest day, costing $15k in lost inventory.",
			"Last repair was 'band-aided' by a cheap tech and it just failed again.",
			"The owner thinks maintenance is a 'racket' and refuses to pay for 'nothing'.",
		},
	},
}

// Generate builds the full lead database. The output depends only on the fixed
// tables above, so repeated calls return identical slices.
func Generate() []Lead {
	out := make([]Lead, 0, len(industries)*len(difficulties)*leadsPerBucket)
	for ii, ind := range industries {
		for di, diff := range difficulties {
			points := painPoints[ind][diff]
			for c := 0; c < leadsPerBucket; c++ {
				g := ii*len(difficulties)*leadsPerBucket + di*leadsPerBucket + c

				// Name indices mix in the difficulty and bucket count so names do not
				// repeat in lockstep with personas.
				p := personas[g%len(personas)]
				first := firstNames[(g+di*13)%len(firstNames)]
				last := lastNames[(g+c*17)%len(lastNames)]
				pain := points[c%len(points)]

				out = append(out, Lead{
					ID:         fmt.Sprintf("lead-%d", g),
					Name:       first + " " + last,
					Industry:   ind,
					Difficulty: diff,
					Persona:    p.kind + ". " + p.trait,
					Context:    pain + " They are characterized as " + strings.ToLower(p.trait),
				})
			}
		}
	}
	return out
}

// Catalog is an immutable, indexed view over a generated lead set.
type Catalog struct {
	leads []Lead
	byID  map[string]int
}

// NewCatalog generates the lead database and indexes it by id.
func NewCatalog() *Catalog {
	all := Generate()
	byID := make(map[string]int, len(all))
	for i, l := range all {
		byID[l.ID] = i
	}
	return &Catalog{leads: all, byID: byID}
}

// All returns a copy of every lead in generation order.
func (c *Catalog) All() []Lead {
	return append([]Lead(nil), c.leads...)
}

// Len reports the number of leads in the catalog.
func (c *Catalog) Len() int { return len(c.leads) }

func (c *Catalog) Get(id string) (Lead, error) {
	i, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return Lead{}, fmt.Errorf("%w: %q", ErrUnknownLead, id)
	}
	return c.leads[i], nil
}

// Filter returns leads matching industry and difficulty. An empty value matches all.
func (c *Catalog) Filter(ind Industry, diff Difficulty) []Lead {
	out := make([]Lead, 0, leadsPerBucket*len(difficulties))
	for _, l := range c.leads {
		if ind != "" && l.Industry != ind {
			continue
		}
		if diff != "" && l.Difficulty != diff {
			continue
		}
		out = append(out, l)
	}
	return out
}
