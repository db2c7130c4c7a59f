package services

import (
	"encoding/json"
	"os"
	"path/filepath"

	"exam-tutor-platform/internal/logger"
)

// CreateSampleKnowledgeBase writes a small demonstration knowledge base
// under root so a fresh deployment has something to answer from.
// Existing files are left untouched.
func CreateSampleKnowledgeBase(root string) error {
	samples := map[string]interface{}{
		"ncert/physics/laws_of_motion.json": map[string]interface{}{
			"chapter": "Laws of Motion",
			"passages": []map[string]interface{}{
				{
					"text":   "Newton's First Law of Motion states that an object at rest stays at rest and an object in motion stays in motion with the same speed and in the same direction unless acted upon by an unbalanced force. This is also known as the law of inertia.",
					"page":   96,
					"topics": []string{"Newton's Laws", "Inertia", "Force"},
				},
				{
					"text":   "Newton's Second Law of Motion states that the acceleration of an object is directly proportional to the net force acting on it and inversely proportional to its mass. Mathematically, F = ma, where F is force, m is mass, and a is acceleration.",
					"page":   98,
					"topics": []string{"Newton's Laws", "Force", "Acceleration", "Mass"},
				},
				{
					"text":   "Newton's Third Law of Motion states that for every action, there is an equal and opposite reaction. When object A exerts a force on object B, object B exerts an equal and opposite force on object A.",
					"page":   102,
					"topics": []string{"Newton's Laws", "Action-Reaction", "Force Pairs"},
				},
			},
		},
		"ncert/chemistry/chemical_bonding.json": map[string]interface{}{
			"chapter": "Chemical Bonding",
			"passages": []map[string]interface{}{
				{
					"text":   "Ionic bonds are formed when electrons are transferred from one atom to another, resulting in the formation of ions. The electrostatic attraction between oppositely charged ions holds them together.",
					"page":   45,
					"topics": []string{"Ionic Bonding", "Electron Transfer", "Ions"},
				},
				{
					"text":   "Covalent bonds are formed when atoms share electrons to achieve a stable electron configuration. The shared electrons are counted in the valence shells of both atoms.",
					"page":   48,
					"topics": []string{"Covalent Bonding", "Electron Sharing", "Valence Electrons"},
				},
			},
		},
		"ncert/mathematics/differential_calculus.json": map[string]interface{}{
			"chapter": "Differential Calculus",
			"passages": []map[string]interface{}{
				{
					"text":   "The derivative of a function f(x) at a point x is defined as the limit of the difference quotient as h approaches zero: f'(x) = lim(h→0) [f(x+h) - f(x)]/h",
					"page":   178,
					"topics": []string{"Derivatives", "Limits", "Differentiation"},
				},
				{
					"text":   "The chain rule states that if y = f(g(x)), then dy/dx = f'(g(x)) · g'(x). This is used to find derivatives of composite functions.",
					"page":   185,
					"topics": []string{"Chain Rule", "Composite Functions", "Differentiation"},
				},
			},
		},
		"formulas/physics.json": []map[string]interface{}{
			{
				"name":        "Kinematic Equation 1",
				"formula":     "v = u + at",
				"description": "Final velocity equals initial velocity plus acceleration times time",
				"conditions":  "For constant acceleration",
				"topics":      []string{"Kinematics", "Motion", "Acceleration"},
			},
			{
				"name":        "Newton's Second Law",
				"formula":     "F = ma",
				"description": "Force equals mass times acceleration",
				"conditions":  "For constant mass",
				"topics":      []string{"Force", "Newton's Laws", "Dynamics"},
			},
		},
		"formulas/chemistry.json": []map[string]interface{}{
			{
				"name":        "Ideal Gas Law",
				"formula":     "PV = nRT",
				"description": "Pressure times volume equals moles times gas constant times temperature",
				"conditions":  "For ideal gases",
				"topics":      []string{"Gases", "Thermodynamics", "State Equations"},
			},
			{
				"name":        "pH Formula",
				"formula":     "pH = -log[H⁺]",
				"description": "pH is the negative logarithm of hydrogen ion concentration",
				"conditions":  "For aqueous solutions",
				"topics":      []string{"Acids and Bases", "pH", "Equilibrium"},
			},
		},
		"formulas/mathematics.json": []map[string]interface{}{
			{
				"name":        "Quadratic Formula",
				"formula":     "x = [-b ± √(b² - 4ac)] / 2a",
				"description": "Solutions for quadratic equation ax² + bx + c = 0",
				"conditions":  "For a ≠ 0",
				"topics":      []string{"Quadratic Equations", "Algebra", "Roots"},
			},
		},
		"past_papers/jee_2023_sample.json": map[string]interface{}{
			"year": "2023",
			"questions": []map[string]interface{}{
				{
					"text":       "A particle moves along a straight line with velocity v = 3t² - 6t + 2 m/s. Find the acceleration at t = 2 seconds.",
					"subject":    "physics",
					"topics":     []string{"Kinematics", "Velocity", "Acceleration"},
					"difficulty": "Medium",
					"marks":      3,
					"solution":   "Given: v = 3t² - 6t + 2\nAcceleration a = dv/dt = 6t - 6\nAt t = 2s: a = 6(2) - 6 = 12 - 6 = 6 m/s²",
				},
				{
					"text":       "Calculate the pH of a 0.01 M HCl solution.",
					"subject":    "chemistry",
					"topics":     []string{"Acids and Bases", "pH Calculation"},
					"difficulty": "Easy",
					"marks":      2,
					"solution":   "HCl is a strong acid, so [H⁺] = 0.01 M\npH = -log[H⁺] = -log(0.01) = -log(10⁻²) = 2",
				},
				{
					"text":       "Find the derivative of f(x) = sin(x²) with respect to x.",
					"subject":    "mathematics",
					"topics":     []string{"Differentiation", "Chain Rule", "Trigonometry"},
					"difficulty": "Medium",
					"marks":      3,
					"solution":   "Using chain rule: f'(x) = cos(x²) · d/dx(x²) = cos(x²) · 2x = 2x·cos(x²)",
				},
			},
		},
	}

	for rel, content := range samples {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		data, err := json.MarshalIndent(content, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
	}

	logger.Info("sample knowledge base created", "root", root)
	return nil
}
